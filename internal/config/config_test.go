package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	for _, k := range []string{"APP_ADDR", "GIN_MODE", "DB_DRIVER", "DB_DSN", "SYNC_CONFIG", "LOG_FORMAT", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	env := LoadEnv()
	if env.AppAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", env.AppAddr)
	}
	if env.DBDriver != DriverMySQL || env.DBDSN != defaultMySQLDSN {
		t.Fatalf("unexpected db defaults: %q %q", env.DBDriver, env.DBDSN)
	}
	if len(env.CORSOrigins) != 0 {
		t.Fatalf("expected no origins, got %v", env.CORSOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test, ,http://b.test ")

	env := LoadEnv()
	if env.DBDriver != DriverSQLite {
		t.Fatalf("driver should be lowercased, got %q", env.DBDriver)
	}
	if env.DBDSN == "" || env.DBDSN == defaultMySQLDSN {
		t.Fatalf("expected sqlite default dsn, got %q", env.DBDSN)
	}
	if len(env.CORSOrigins) != 2 || env.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", env.CORSOrigins)
	}
}

func TestParseSyncOverlaysDefaults(t *testing.T) {
	s, err := ParseSync([]byte(`
timezone: Asia/Jakarta
sweep_cron: "*/15 * * * *"
queue:
  concurrency: 5
  job_timeout: 30s
batch:
  rate_delay: 500ms
`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s.SweepCron != "*/15 * * * *" {
		t.Fatalf("unexpected cron %q", s.SweepCron)
	}

	cfg, err := s.Engine()
	if err != nil {
		t.Fatalf("engine config error: %v", err)
	}
	if cfg.QueueConcurrency != 5 || cfg.JobTimeout != 30*time.Second {
		t.Fatalf("queue overrides not applied: %+v", cfg)
	}
	if cfg.RateLimitDelay != 500*time.Millisecond {
		t.Fatalf("rate delay not applied: %v", cfg.RateLimitDelay)
	}
	if cfg.ChunkSize != 10 || cfg.RateLimitMax != 5 || cfg.WriteAttempts != 3 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Location.String() != "Asia/Jakarta" {
		t.Fatalf("unexpected location %v", cfg.Location)
	}
}

func TestParseSyncExplicitZeroRetries(t *testing.T) {
	s, err := ParseSync([]byte("queue:\n  max_retries: 0\n"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cfg, err := s.Engine()
	if err != nil {
		t.Fatalf("engine config error: %v", err)
	}
	if cfg.JobMaxRetries != 0 {
		t.Fatalf("expected max_retries 0 to stick, got %d", cfg.JobMaxRetries)
	}

	cfg, err = Sync{}.Engine()
	if err != nil {
		t.Fatalf("engine config error: %v", err)
	}
	if cfg.JobMaxRetries != 2 {
		t.Fatalf("omitted max_retries should default to 2, got %d", cfg.JobMaxRetries)
	}
}

func TestParseSyncRejectsZeroDelays(t *testing.T) {
	for _, doc := range []string{
		"batch:\n  rate_delay: 0s\n",
		"queue:\n  base_delay: 0s\n",
		"writes:\n  base_delay: 0s\n",
	} {
		s, err := ParseSync([]byte(doc))
		if err != nil {
			t.Fatalf("parse error for %q: %v", doc, err)
		}
		if _, err := s.Engine(); err == nil {
			t.Fatalf("expected error for zero delay in %q", doc)
		}
	}
}

func TestParseSyncRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseSync([]byte("queue:\n  workers: 3\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestSyncEngineRejectsNegativeAndBadZone(t *testing.T) {
	var s Sync
	s.Batch.ChunkSize = -1
	if _, err := s.Engine(); err == nil {
		t.Fatalf("expected negative chunk size error")
	}

	s = Sync{Timezone: "Mars/Olympus"}
	if _, err := s.Engine(); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestLoadSyncFromFile(t *testing.T) {
	s, err := LoadSync("")
	if err != nil || s.SweepCron != "" {
		t.Fatalf("empty path should give defaults: %+v %v", s, err)
	}

	path := filepath.Join(t.TempDir(), "sync.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  ttl: 1m\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = LoadSync(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if s.Cache.TTL != time.Minute {
		t.Fatalf("unexpected ttl %v", s.Cache.TTL)
	}

	if _, err := LoadSync(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestOpenDBSQLiteMemory(t *testing.T) {
	db, err := OpenDB(t.Context(), Env{DBDriver: DriverSQLite, DBDSN: "file::memory:"})
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer db.Close()
	if err := Ping(t.Context(), db); err != nil {
		t.Fatalf("ping error: %v", err)
	}
}

func TestOpenDBUnknownDriver(t *testing.T) {
	if _, err := OpenDB(t.Context(), Env{DBDriver: "postgres"}); err == nil {
		t.Fatalf("expected driver error")
	}
}
