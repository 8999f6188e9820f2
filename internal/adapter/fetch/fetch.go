// Package fetch retrieves raw weather documents over HTTP or from disk.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// maxDocumentBytes bounds a single fetched document.
const maxDocumentBytes = 64 << 20

// ErrUnsupportedScheme is returned for locations that are neither HTTP(S) nor files.
var ErrUnsupportedScheme = errors.New("unsupported location scheme")

// HTTPFetcher downloads documents with a bounded timeout.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewHTTPFetcher creates an HTTP fetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: "wx-engine/1.0",
		logger:    logger,
	}
}

// Fetch GETs location and returns the body. Non-200 responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: status %d: %s", location, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	f.logger.Debug("document fetched", "location", location, "bytes", len(data))
	return data, nil
}

// FileFetcher reads documents from the local filesystem. Locations may be
// plain paths or file:// URLs.
type FileFetcher struct{}

// Fetch reads the file named by location.
func (FileFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	path := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Fetcher is satisfied by every fetcher in this package.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Router dispatches on the location's scheme.
type Router struct {
	HTTP Fetcher
	File Fetcher
}

// NewRouter wires an HTTP fetcher and a file fetcher together.
func NewRouter(timeout time.Duration, logger *slog.Logger) *Router {
	return &Router{HTTP: NewHTTPFetcher(timeout, logger), File: FileFetcher{}}
}

// Fetch routes http and https locations to HTTP, file and bare paths to File.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location %q: %w", location, err)
	}
	switch u.Scheme {
	case "http", "https":
		return r.HTTP.Fetch(ctx, location)
	case "file", "":
		return r.File.Fetch(ctx, location)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}
