package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"syscall"
	"time"

	"github.com/datapull/fetchtozip/internal/table"
)

// fetchHTTP pulls all pages from a paginated JSON endpoint and assembles
// them into one table. Column order is the sorted union of keys seen across
// all pages, which keeps the layout stable and reproducible for a given
// response set; rows keep fetch order, and keys absent from a record map to
// nil cells.
func (f *Fetcher) fetchHTTP(ctx context.Context, src *HTTPSource) (table.Table, error) {
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = f.opts.Timeout
	}
	pageLimit := src.PageLimit
	if pageLimit <= 0 {
		pageLimit = f.opts.PageLimit
	}
	pageSize := src.PageSize
	if pageSize <= 0 {
		pageSize = f.opts.PageSize
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var interval time.Duration
	if src.RateLimit > 0 {
		interval = time.Second / time.Duration(src.RateLimit)
	}

	var records []map[string]any
	for page := 1; page <= pageLimit; page++ {
		if interval > 0 && page > 1 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return table.Table{}, classifyHTTPErr(ctx.Err(), page)
			}
		}

		pageRecords, err := f.fetchPage(ctx, src.BaseURL, page, pageSize)
		if err != nil {
			return table.Table{}, err
		}
		if len(pageRecords) == 0 {
			slog.Debug("pagination stopped on empty page", "page", page)
			break
		}
		records = append(records, pageRecords...)
	}

	slog.Debug("http fetch complete", "url", src.BaseURL, "records", len(records))
	return assembleTable(records), nil
}

// fetchPage requests one page and decodes it as a JSON array of objects.
func (f *Fetcher) fetchPage(ctx context.Context, baseURL string, page, pageSize int) ([]map[string]any, error) {
	url := fmt.Sprintf("%s?page=%d&limit=%d", baseURL, page, pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Page: page, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyHTTPErr(err, page)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{
			Kind: KindRateLimited,
			Page: page,
			Err:  fmt.Errorf("source returned HTTP 429 Too Many Requests"),
		}
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{
			Kind: KindMalformedResponse,
			Page: page,
			Err:  fmt.Errorf("source returned HTTP %d", resp.StatusCode),
		}
	}

	var pageRecords []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&pageRecords); err != nil {
		return nil, &Error{
			Kind: KindMalformedResponse,
			Page: page,
			Err:  fmt.Errorf("expected a JSON array of records: %w", err),
		}
	}
	return pageRecords, nil
}

// classifyHTTPErr maps transport-level failures onto the fetch error taxonomy.
func classifyHTTPErr(err error, page int) *Error {
	kind := KindMalformedResponse
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindConnectionRefused
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = KindTimeout
		}
	}
	return &Error{Kind: kind, Page: page, Err: err}
}

// assembleTable builds a uniform table from decoded records. The column set
// is the union of keys across all records, sorted for a stable layout.
func assembleTable(records []map[string]any) table.Table {
	keySet := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			keySet[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keySet))
	for k := range keySet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = rec[col] // nil when the record lacks the key
		}
		rows[i] = row
	}
	return table.Table{Columns: columns, Rows: rows}
}
