package config

import (
	"os"
	"strings"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

const defaultMySQLDSN = "root:@tcp(127.0.0.1:3306)/fleetops?parseTime=true&loc=Local&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s"

type Env struct {
	AppAddr        string
	GinMode        string
	DBDriver       string
	DBDSN          string
	SyncConfigPath string
	LogFormat      string
	LogLevel       string
	CORSOrigins    []string
}

func LoadEnv() Env {
	appAddr := envOr("APP_ADDR", ":8080")
	driver := strings.ToLower(envOr("DB_DRIVER", DriverMySQL))

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		switch driver {
		case DriverSQLite:
			dsn = "file:fleetops.db?_pragma=busy_timeout(5000)"
		default:
			dsn = defaultMySQLDSN
		}
	}

	return Env{
		AppAddr:        appAddr,
		GinMode:        strings.TrimSpace(os.Getenv("GIN_MODE")),
		DBDriver:       driver,
		DBDSN:          dsn,
		SyncConfigPath: strings.TrimSpace(os.Getenv("SYNC_CONFIG")),
		LogFormat:      envOr("LOG_FORMAT", "text"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		CORSOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
