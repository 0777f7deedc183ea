package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// TestStore opens a migrated SQLite ledger in a temp dir, closed at test cleanup.
func TestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "crcsum.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// TestPostgresStore opens DATABASE_URL, migrates and truncates the ledger
// tables. Skips the test when DATABASE_URL is unset. Run with -p 1 so
// packages don't truncate under each other.
func TestPostgresStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := OpenPostgres(url)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := s.db.Exec("TRUNCATE TABLE results, runs RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}
