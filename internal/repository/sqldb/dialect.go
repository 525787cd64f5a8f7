package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// execQuerier is satisfied by *sql.DB and *sql.Tx
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Dialect isolates the differences between storage engines. Queries are
// written with ? placeholders and rebound per engine.
type Dialect interface {
	// Name is the config driver name: sqlite or postgres
	Name() string
	// Rebind rewrites ? placeholders into the engine's syntax
	Rebind(query string) string
	// TimeValue converts a timestamp into the engine's column value
	TimeValue(t time.Time) interface{}
	// InsertReturningID runs an INSERT and returns the generated id
	InsertReturningID(ctx context.Context, q execQuerier, query string, args ...interface{}) (int64, error)
}

// SQLite is the dialect for modernc.org/sqlite
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Rebind(query string) string { return query }

func (SQLite) TimeValue(t time.Time) interface{} { return t.UTC().Format(timeLayout) }

func (SQLite) InsertReturningID(ctx context.Context, q execQuerier, query string, args ...interface{}) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Postgres is the dialect for github.com/lib/pq
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

// Rebind replaces ? with $1, $2, ... outside of quoted literals.
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)

	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (Postgres) TimeValue(t time.Time) interface{} { return t.UTC() }

func (d Postgres) InsertReturningID(ctx context.Context, q execQuerier, query string, args ...interface{}) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id)
	return id, err
}

// DialectFor returns the dialect registered under a driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return SQLite{}, nil
	case "postgres":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// dbTime scans timestamps stored either as text or as native time values
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", value)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
