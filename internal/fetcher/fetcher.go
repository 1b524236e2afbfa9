// Package fetcher downloads remote data over HTTP with per-host rate limiting.
package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// ErrNotFound marks a 404 from upstream: the resource does not exist and the
// request must not be retried.
var ErrNotFound = eris.New("fetcher: not found")

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. Transient
	// upstream failures are returned as resilience.TransientError so the
	// caller's retry policy can distinguish them; a 404 returns ErrNotFound.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
