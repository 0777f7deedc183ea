package db

import (
	"context"
	"database/sql"
	"time"
)

// Run is one batch checksum run over a root path.
type Run struct {
	ID               int64      `json:"id"`
	RootPath         string     `json:"root_path"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	FileCount        int64      `json:"file_count"`
	ChecksummedCount int64      `json:"checksummed_count"`
	ReusedCount      int64      `json:"reused_count"`
	ErrorCount       int64      `json:"error_count"`
	ByteCount        int64      `json:"byte_count"`
}

// RunStats are the totals written when a run completes.
type RunStats struct {
	Files       int64
	Checksummed int64
	Reused      int64
	Errors      int64
	Bytes       int64
}

const runColumns = `id, root_path, started_at, completed_at,
	COALESCE(file_count, 0), COALESCE(checksummed_count, 0), COALESCE(reused_count, 0),
	COALESCE(error_count, 0), COALESCE(byte_count, 0)`

// CreateRun inserts a run started now and returns it. completed_at stays null
// until CompleteRun.
func (s *Store) CreateRun(ctx context.Context, rootPath string) (*Run, error) {
	started := time.Now().UTC().Truncate(time.Second)
	var id int64
	err := s.retry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			s.rebind("INSERT INTO runs (root_path, started_at) VALUES (?, ?) RETURNING id"),
			rootPath, s.timeArg(started)).Scan(&id)
	})
	if err != nil {
		return nil, err
	}
	return &Run{ID: id, RootPath: rootPath, StartedAt: started}, nil
}

// CompleteRun sets completed_at to now and records the run totals.
func (s *Store) CompleteRun(ctx context.Context, id int64, st RunStats) error {
	return s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE runs SET completed_at = ?, file_count = ?,
			checksummed_count = ?, reused_count = ?, error_count = ?, byte_count = ? WHERE id = ?`),
			s.timeArg(time.Now()), st.Files, st.Checksummed, st.Reused, st.Errors, st.Bytes, id)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started rfc3339Time
	var completed nullRFC3339Time
	err := row.Scan(&r.ID, &r.RootPath, &started, &completed,
		&r.FileCount, &r.ChecksummedCount, &r.ReusedCount, &r.ErrorCount, &r.ByteCount)
	if err != nil {
		return nil, err
	}
	r.StartedAt = started.Time
	r.CompletedAt = completed.Ptr()
	return &r, nil
}

// GetRun returns the run with the given id, or sql.ErrNoRows if not found.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+runColumns+" FROM runs WHERE id = ?"), id)
	return scanRun(row)
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id DESC"
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.rebind(q+" LIMIT ?"), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
