package fetch

import "fmt"

// Kind classifies fetch failures.
type Kind int

const (
	KindTimeout Kind = iota
	KindRateLimited
	KindConnectionRefused
	KindMalformedResponse
	KindQueryError
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate limited"
	case KindConnectionRefused:
		return "connection refused"
	case KindMalformedResponse:
		return "malformed response"
	case KindQueryError:
		return "query error"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure. For paginated HTTP fetches Page
// records the 1-based page index the fetch failed on; a mid-pagination
// failure fails the whole fetch, it never returns partial data.
type Error struct {
	Kind Kind
	Page int // 0 when not a paginated fetch
	Err  error
}

func (e *Error) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("fetch failed on page %d (%s): %v", e.Page, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
