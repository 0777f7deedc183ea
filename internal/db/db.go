package db

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// busyTimeoutMS is how long SQLite waits (ms) before returning SQLITE_BUSY when locked.
// Applied per-connection via DSN so all pool connections get it (batch workers + HTTP handlers).
const busyTimeoutMS = 30000

// readOnlyBusyTimeoutMS is used for the read-only pool. In WAL mode readers
// don't block on writers, so keep it short so the API doesn't hang.
const readOnlyBusyTimeoutMS = 5000

func pragmas(busyMS int) string {
	v := url.Values{}
	v.Add("_pragma", "busy_timeout("+strconv.Itoa(busyMS)+")")
	v.Add("_pragma", "foreign_keys(1)")
	return v.Encode()
}

// Open opens the SQLite ledger at path and enables WAL mode. The caller must
// call Close when done. For an in-memory ledger use path ":memory:"; the URI
// form with cache=shared is used so every connection in the pool sees the
// same database.
func Open(path string) (*Store, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&" + pragmas(busyTimeoutMS)
	} else {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + pragmas(busyTimeoutMS)
	}
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, err
	}
	if _, err := database.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = database.Close()
		return nil, err
	}
	return newStore(database, SQLite), nil
}

// OpenReadOnly opens a read-only pool on the same SQLite file so the HTTP API
// stays responsive while a batch run is writing. Returns (nil, nil) for ":memory:".
func OpenReadOnly(path string) (*Store, error) {
	if path == ":memory:" {
		return nil, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	// URI with mode=ro; forward slashes for SQLite URI
	uri := "file:" + filepath.ToSlash(abs) + "?mode=ro&" + pragmas(readOnlyBusyTimeoutMS)
	database, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, err
	}
	return newStore(database, SQLite), nil
}
