package fetch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datapull/fetchtozip/internal/table"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// fetchDatabase executes a single query against the configured engine.
func (f *Fetcher) fetchDatabase(ctx context.Context, src *DatabaseSource) (table.Table, error) {
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = f.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch src.Engine {
	case EnginePostgres:
		return f.fetchPostgres(ctx, src)
	case EngineSQLite:
		return f.fetchSQLite(ctx, src)
	default:
		return table.Table{}, fmt.Errorf("%w: unknown engine %q", ErrSourceDescriptor, src.Engine)
	}
}

// fetchPostgres queries a remote PostgreSQL server through a short-lived
// connection pool. The pool exists only for the duration of the fetch; the
// service holds no standing database connections.
func (f *Fetcher) fetchPostgres(ctx context.Context, src *DatabaseSource) (table.Table, error) {
	pool, err := pgxpool.New(ctx, src.DSN)
	if err != nil {
		return table.Table{}, classifyDBErr(fmt.Errorf("connect: %w", err))
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, src.Query)
	if err != nil {
		return table.Table{}, classifyDBErr(fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	var data [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return table.Table{}, classifyDBErr(fmt.Errorf("scan row: %w", err))
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, classifyDBErr(fmt.Errorf("read rows: %w", err))
	}

	slog.Debug("postgres fetch complete", "columns", len(columns), "rows", len(data))
	return table.Table{Columns: columns, Rows: data}, nil
}

// fetchSQLite queries an embedded SQLite database, file-backed or
// in-memory. InitSQL, when present, runs once before the query; it is how
// in-memory sources get their schema and seed data.
func (f *Fetcher) fetchSQLite(ctx context.Context, src *DatabaseSource) (table.Table, error) {
	db, err := sql.Open("sqlite", src.Path)
	if err != nil {
		return table.Table{}, classifyDBErr(fmt.Errorf("open %s: %w", src.Path, err))
	}
	defer db.Close()

	// An in-memory database vanishes with its connection, so keep exactly one.
	db.SetMaxOpenConns(1)

	if src.InitSQL != "" {
		if _, err := db.ExecContext(ctx, src.InitSQL); err != nil {
			return table.Table{}, classifyDBErr(fmt.Errorf("init script: %w", err))
		}
	}

	rows, err := db.QueryContext(ctx, src.Query)
	if err != nil {
		return table.Table{}, classifyDBErr(fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return table.Table{}, classifyDBErr(err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return table.Table{}, classifyDBErr(fmt.Errorf("scan row: %w", err))
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, classifyDBErr(fmt.Errorf("read rows: %w", err))
	}

	slog.Debug("sqlite fetch complete", "path", src.Path, "columns", len(columns), "rows", len(data))
	return table.Table{Columns: columns, Rows: data}, nil
}

// classifyDBErr maps database failures onto the fetch error taxonomy.
// Deadline expiry is reported as a timeout, everything else as a query error.
func classifyDBErr(err error) *Error {
	kind := KindQueryError
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Err: err}
}
