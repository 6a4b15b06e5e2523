package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id VARCHAR(64) CHARACTER SET ascii COLLATE ascii_bin NOT NULL PRIMARY KEY,
		vehicle_number VARCHAR(32) NOT NULL,
		start_at BIGINT NULL,
		rank_index INT NOT NULL DEFAULT 0,
		route VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		INDEX idx_trips_vehicle_start (vehicle_number, start_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		vehicle_number VARCHAR(32) NOT NULL PRIMARY KEY,
		plate_number VARCHAR(32) NOT NULL DEFAULT '',
		latest_trip_id VARCHAR(64) CHARACTER SET ascii COLLATE ascii_bin NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id TEXT NOT NULL PRIMARY KEY,
		vehicle_number TEXT NOT NULL,
		start_at INTEGER NULL,
		rank_index INTEGER NOT NULL DEFAULT 0,
		route TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_vehicle_start ON trips (vehicle_number, start_at)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		vehicle_number TEXT NOT NULL PRIMARY KEY,
		plate_number TEXT NOT NULL DEFAULT '',
		latest_trip_id TEXT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

// EnsureSchema creates the trips and vehicles tables when missing.
// Timestamps are stored as unix milliseconds in both dialects.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect string) error {
	stmts := mysqlSchema
	switch dialect {
	case DialectMySQL, "":
	case DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// SchemaTables lists the tables EnsureSchema manages.
var SchemaTables = []string{"trips", "vehicles"}

// HasTable reports whether table exists in the connected database.
func HasTable(ctx context.Context, db *sql.DB, dialect, table string) (bool, error) {
	query := `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ? LIMIT 1`
	if dialect == DialectSQLite {
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? LIMIT 1`
	}
	var name string
	err := db.QueryRowContext(ctx, query, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return name != "", nil
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
