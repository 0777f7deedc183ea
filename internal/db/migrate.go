package db

import "context"

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_path TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		file_count INTEGER,
		checksummed_count INTEGER,
		reused_count INTEGER,
		error_count INTEGER,
		byte_count INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		checksum TEXT,
		status TEXT NOT NULL,
		error TEXT,
		computed_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id)`,
	// PreviousChecksum: unchanged-file reuse across runs.
	`CREATE INDEX IF NOT EXISTS idx_results_path_size_mtime ON results(path, size, mtime)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_results_run_id_path ON results(run_id, path)`,
}

// Migrate creates the runs and results tables and their indexes if they do
// not exist. Idempotent; safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := sqliteDDL
	if s.dialect == Postgres {
		ddl = postgresDDL
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
