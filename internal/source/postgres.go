package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"opsboard/internal/csvfeed"
)

// OpenDB opens a pooled Postgres handle through the pgx stdlib driver and
// checks it answers within timeout.
func OpenDB(ctx context.Context, url string, timeout time.Duration) (*sql.DB, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("database URL missing; set OPSBOARD_DB_URL or DATABASE_URL")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// DBFunc hands out the shared handle, opening it on first use.
type DBFunc func(ctx context.Context) (*sql.DB, error)

// FixedDB always returns db.
func FixedDB(db *sql.DB) DBFunc {
	return func(context.Context) (*sql.DB, error) { return db, nil }
}

var identPart = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sanitizeIdent accepts name or schema.name. Identifiers are interpolated
// into SQL, so anything else is refused.
func sanitizeIdent(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("identifier is required")
	}
	parts := strings.Split(value, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid identifier: %s", value)
	}
	for _, p := range parts {
		if !identPart.MatchString(p) {
			return "", fmt.Errorf("invalid identifier: %s", value)
		}
	}
	return value, nil
}

// PostgresSource reads a table (or view) as rows of text, in the order of
// its configured columns. It never writes.
type PostgresSource struct {
	key     string
	db      DBFunc
	table   string
	columns []string
	orderBy string
	timeout time.Duration
}

// NewPostgresSource validates identifiers up front.
func NewPostgresSource(key string, db DBFunc, table string, columns []string, orderBy string, timeout time.Duration) (*PostgresSource, error) {
	t, err := sanitizeIdent(table)
	if err != nil {
		return nil, fmt.Errorf("feed %s table: %w", key, err)
	}
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		ident, err := sanitizeIdent(c)
		if err != nil {
			return nil, fmt.Errorf("feed %s column: %w", key, err)
		}
		cols = append(cols, ident)
	}
	if orderBy != "" {
		if orderBy, err = sanitizeIdent(orderBy); err != nil {
			return nil, fmt.Errorf("feed %s order_by: %w", key, err)
		}
	}
	return &PostgresSource{key: key, db: db, table: t, columns: cols, orderBy: orderBy, timeout: timeout}, nil
}

// Key implements Source.
func (s *PostgresSource) Key() string { return s.key }

// Location implements Source. It is the full query, so feeds reading
// different columns or orderings of one table stay separate upstreams.
func (s *PostgresSource) Location() string { return "postgres:" + s.query() }

func (s *PostgresSource) query() string {
	cols := "*"
	if len(s.columns) > 0 {
		cols = strings.Join(s.columns, ", ")
	}
	q := fmt.Sprintf("SELECT %s FROM %s", cols, s.table)
	if s.orderBy != "" {
		q += " ORDER BY " + s.orderBy
	}
	return q
}

// Load implements Source. NULL becomes "".
func (s *PostgresSource) Load(ctx context.Context) (csvfeed.Feed, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	db, err := s.db(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.key, err)
	}
	rows, err := db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.key, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", s.key, err)
	}

	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.key, err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = v.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", s.key, err)
	}
	return csvfeed.FromRows(out), nil
}
