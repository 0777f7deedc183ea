package db

import (
	"context"
	"database/sql"
	"time"
)

// Result statuses. A done row has a checksum and no error; an error row has an error and no checksum.
const (
	StatusDone  = "done"
	StatusError = "error"
)

// Result is one file's outcome within a run.
type Result struct {
	ID         int64     `json:"id"`
	RunID      int64     `json:"run_id"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	MTime      int64     `json:"mtime"`
	Checksum   *string   `json:"checksum,omitempty"`
	Status     string    `json:"status"`
	Error      *string   `json:"error,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// RecordResult inserts or replaces the result for (run_id, path). Exactly one
// of checksum and errMsg should be non-empty; status is derived from errMsg.
func (s *Store) RecordResult(ctx context.Context, runID int64, path string, size, mtime int64, checksum, errMsg string, computedAt time.Time) error {
	status := StatusDone
	var sumVal, errVal any = checksum, nil
	if errMsg != "" {
		status = StatusError
		sumVal, errVal = nil, errMsg
	}
	return s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO results (run_id, path, size, mtime, checksum, status, error, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, path) DO UPDATE SET size = excluded.size, mtime = excluded.mtime,
				checksum = excluded.checksum, status = excluded.status, error = excluded.error, computed_at = excluded.computed_at`),
			runID, path, size, mtime, sumVal, status, errVal, s.timeArg(computedAt))
		return err
	})
}

// ResultsByRun returns all results of the run ordered by path.
func (s *Store) ResultsByRun(ctx context.Context, runID int64) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, run_id, path, size, mtime, checksum, status, error, computed_at
		FROM results WHERE run_id = ? ORDER BY path`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var sum, errMsg sql.NullString
		var computed rfc3339Time
		if err := rows.Scan(&r.ID, &r.RunID, &r.Path, &r.Size, &r.MTime, &sum, &r.Status, &errMsg, &computed); err != nil {
			return nil, err
		}
		if sum.Valid {
			v := sum.String
			r.Checksum = &v
		}
		if errMsg.Valid {
			v := errMsg.String
			r.Error = &v
		}
		r.ComputedAt = computed.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

// PreviousChecksum returns the checksum recorded for path by a run other than
// runID when size and mtime are unchanged. Returns "" and nil when there is none.
func (s *Store) PreviousChecksum(ctx context.Context, runID int64, path string, size, mtime int64) (string, error) {
	var out string
	err := s.retry(ctx, func() error {
		var sum sql.NullString
		err := s.db.QueryRowContext(ctx, s.rebind(`SELECT checksum FROM results
			WHERE run_id != ? AND path = ? AND size = ? AND mtime = ? AND status = 'done' AND checksum IS NOT NULL
			ORDER BY computed_at DESC, id DESC LIMIT 1`),
			runID, path, size, mtime).Scan(&sum)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		out = sum.String
		return nil
	})
	return out, err
}
