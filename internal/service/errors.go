package service

import "errors"

var (
	// ErrInput rejects a request before anything is read or written.
	ErrInput = errors.New("invalid input")
	// ErrUpstreamFetch marks a failed hierarchy, record, ledger or detector lookup.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrNotFound      = errors.New("not found")
)

const (
	KindInput       = "input"
	KindUpstream    = "upstream"
	KindPersistence = "persistence"
	KindNotFound    = "not_found"
	KindInternal    = "internal"
)

// ErrorKind classifies err for batch results and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrUpstreamFetch):
		return KindUpstream
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
