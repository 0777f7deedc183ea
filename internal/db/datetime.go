package db

import (
	"fmt"
	"time"
)

func parseTimeValue(value any) (time.Time, bool, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, true, nil
	case string:
		if v == "" {
			return time.Time{}, false, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil, err
	case []byte:
		if len(v) == 0 {
			return time.Time{}, false, nil
		}
		t, err := time.Parse(time.RFC3339, string(v))
		return t, err == nil, err
	default:
		return time.Time{}, false, fmt.Errorf("cannot scan %T into time", value)
	}
}

// rfc3339Time implements sql.Scanner for non-null datetimes: RFC3339 TEXT
// (SQLite) or timestamptz (Postgres). NULL scans as the zero time.
type rfc3339Time struct{ time.Time }

// Scan implements sql.Scanner.
func (t *rfc3339Time) Scan(value any) error {
	parsed, _, err := parseTimeValue(value)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// nullRFC3339Time implements sql.Scanner for nullable datetimes such as completed_at.
type nullRFC3339Time struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (n *nullRFC3339Time) Scan(value any) error {
	parsed, ok, err := parseTimeValue(value)
	if err != nil {
		return err
	}
	n.Time, n.Valid = parsed.UTC(), ok
	return nil
}

// Ptr returns *time.Time for use in structs; nil if not Valid.
func (n *nullRFC3339Time) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
