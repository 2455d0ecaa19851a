package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/xxxsen/tablereserve/internal/config"
	"github.com/xxxsen/tablereserve/internal/db"
)

// OpenSQLite returns a migrated database in a per-test temp file.
func OpenSQLite(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "users.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// OpenPostgres connects to TEST_DB_HOST and skips the test when it is unset.
func OpenPostgres(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     host,
		Port:     5432,
		User:     "tablereserve",
		Password: "tablereserve_pass",
		DBName:   "tablereserve_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.Exec("DELETE FROM users"); err != nil {
		t.Fatalf("reset users: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
