// Package dbtest opens a migrated postgres database for integration tests.
package dbtest

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/tribute/internal/config"
	"github.com/xxxsen/tribute/internal/db"
)

// Open skips the test unless TEST_DATABASE_DSN or TEST_DB_HOST is set.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	cfg := config.DatabaseConfig{DSN: os.Getenv("TEST_DATABASE_DSN")}
	if cfg.DSN == "" {
		host := os.Getenv("TEST_DB_HOST")
		if host == "" {
			t.Skip("TEST_DATABASE_DSN / TEST_DB_HOST not set, skipping postgres test")
		}
		cfg = config.DatabaseConfig{
			Host:     host,
			Port:     5432,
			User:     "tribute",
			Password: "tribute_pass",
			DBName:   "tribute_test",
			SSLMode:  "disable",
		}
	}
	conn, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
