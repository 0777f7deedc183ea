package db

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres opens the ledger on PostgreSQL using url (from DATABASE_URL).
// Caller must call Close when done and Migrate before first use.
func OpenPostgres(url string) (*Store, error) {
	database, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, err
	}
	// Concurrent readers and writers are fine; no separate read-only pool.
	database.SetMaxOpenConns(25)
	database.SetMaxIdleConns(5)
	return newStore(database, Postgres), nil
}

var postgresDDL = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id BIGSERIAL PRIMARY KEY,
		root_path TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		file_count BIGINT,
		checksummed_count BIGINT,
		reused_count BIGINT,
		error_count BIGINT,
		byte_count BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		size BIGINT NOT NULL,
		mtime BIGINT NOT NULL,
		checksum TEXT,
		status TEXT NOT NULL,
		error TEXT,
		computed_at TIMESTAMPTZ NOT NULL,
		UNIQUE(run_id, path)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_results_path_size_mtime ON results(path, size, mtime)`,
}
