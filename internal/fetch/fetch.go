// Package fetch pulls row-oriented tabular data from a configured source
// and returns it as a uniform in-memory table.
//
// Two source families are supported: paginated HTTP endpoints returning
// JSON arrays of objects, and SQL databases (a network-reachable PostgreSQL
// server, or an embedded SQLite database that may be file-backed or fully
// in-memory). The source descriptor is a tagged union; exactly one variant
// must be populated.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/datapull/fetchtozip/internal/table"
)

// Supported database engines.
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// ErrSourceDescriptor is returned for descriptors that do not populate
// exactly one source variant, or populate one incompletely.
var ErrSourceDescriptor = errors.New("invalid source descriptor")

// HTTPSource describes a paginated HTTP JSON endpoint. Pages are requested
// as GET <BaseURL>?page=N&limit=<PageSize> starting from page 1; pagination
// stops at the first empty page or after PageLimit pages.
type HTTPSource struct {
	BaseURL string `json:"base_url"`

	// RateLimit is the maximum number of page requests per second.
	// Zero means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// PageLimit caps the number of pages fetched. Zero means the fetcher
	// default applies.
	PageLimit int `json:"page_limit,omitempty"`

	// PageSize is the per-page record count requested from the source.
	PageSize int `json:"page_size,omitempty"`

	// Timeout bounds the whole paginated fetch. Zero means the fetcher
	// default applies.
	Timeout time.Duration `json:"-"`
}

// DatabaseSource describes a single-query SQL fetch.
type DatabaseSource struct {
	// Engine selects the driver: EnginePostgres or EngineSQLite.
	Engine string `json:"engine"`

	// DSN is the connection string for a remote engine (postgres).
	DSN string `json:"dsn,omitempty"`

	// Path is the database file for the embedded engine; ":memory:" gives a
	// fully in-memory database.
	Path string `json:"path,omitempty"`

	// Query is the single SQL query whose result becomes the table.
	Query string `json:"query"`

	// InitSQL is an optional initialization script run once before Query.
	// Embedded engine only.
	InitSQL string `json:"init_sql,omitempty"`

	// Timeout bounds connection plus query execution. Zero means the
	// fetcher default applies.
	Timeout time.Duration `json:"-"`
}

// Source is the tagged fetch-source union. Exactly one variant must be set.
type Source struct {
	HTTP     *HTTPSource     `json:"http,omitempty"`
	Database *DatabaseSource `json:"database,omitempty"`
}

// Validate checks the exactly-one-variant invariant and per-variant
// required fields.
func (s Source) Validate() error {
	switch {
	case s.HTTP != nil && s.Database != nil:
		return errors.Join(ErrSourceDescriptor, errors.New("both http and database sources populated"))
	case s.HTTP != nil:
		if s.HTTP.BaseURL == "" {
			return errors.Join(ErrSourceDescriptor, errors.New("http source requires base_url"))
		}
		return nil
	case s.Database != nil:
		db := s.Database
		if db.Query == "" {
			return errors.Join(ErrSourceDescriptor, errors.New("database source requires a query"))
		}
		switch db.Engine {
		case EnginePostgres:
			if db.DSN == "" {
				return errors.Join(ErrSourceDescriptor, errors.New("postgres source requires a dsn"))
			}
			if db.InitSQL != "" {
				return errors.Join(ErrSourceDescriptor, errors.New("init_sql is supported for the embedded engine only"))
			}
		case EngineSQLite:
			if db.Path == "" {
				return errors.Join(ErrSourceDescriptor, errors.New("sqlite source requires a path"))
			}
		default:
			return errors.Join(ErrSourceDescriptor, errors.New("unknown database engine: "+db.Engine))
		}
		return nil
	default:
		return errors.Join(ErrSourceDescriptor, errors.New("no source populated"))
	}
}

// Options tune fetcher defaults applied when a source leaves them unset.
type Options struct {
	Timeout   time.Duration // per-fetch deadline (default 30s)
	PageLimit int           // default max pages for HTTP sources (default 10)
	PageSize  int           // default per-page record count (default 100)
}

// Fetcher executes source fetches. Safe for concurrent use; each Fetch call
// is independent.
type Fetcher struct {
	client *http.Client
	opts   Options
}

// NewFetcher creates a Fetcher with the given defaults.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 10
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	return &Fetcher{
		client: &http.Client{},
		opts:   opts,
	}
}

// Fetch pulls the source into memory. Failures are reported as *Error with
// a classified Kind; a fetch never returns partial data.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (table.Table, error) {
	if err := src.Validate(); err != nil {
		return table.Table{}, err
	}
	if src.HTTP != nil {
		return f.fetchHTTP(ctx, src.HTTP)
	}
	return f.fetchDatabase(ctx, src.Database)
}
