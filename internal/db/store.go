// Package db is the checksum ledger: runs and per-file results, stored in
// SQLite by default or PostgreSQL when DATABASE_URL is set.
package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Dialect selects placeholder and timestamp handling.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Store wraps a connection pool for one dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func newStore(database *sql.DB, d Dialect) *Store {
	return &Store{db: database, dialect: d}
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL. Queries must
// not contain literal question marks.
func (s *Store) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// timeArg formats t for a timestamp column: RFC3339 TEXT in SQLite, timestamptz in Postgres.
func (s *Store) timeArg(t time.Time) any {
	if s.dialect == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339)
}
