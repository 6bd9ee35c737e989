package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-telemetry-lab/internal/domain"
)

// Default fetcher configuration values.
const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxBodyBytes = 64 << 20
)

// HTTPFetcher fetches a JSON array of telemetry records with one GET per call.
// It never retries and never caches.
type HTTPFetcher struct {
	endpoint string
	client   *http.Client
	maxBody  int64
}

// FetcherOption configures HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetchTimeout sets the HTTP client timeout.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithMaxBodyBytes limits the accepted response size.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBody = n
	}
}

// NewHTTPFetcher creates a fetcher for endpoint.
func NewHTTPFetcher(endpoint string, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ Source = (*HTTPFetcher)(nil)

// Name returns the endpoint URL.
func (f *HTTPFetcher) Name() string {
	return f.endpoint
}

// Fetch performs the GET and decodes the body.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]domain.TelemetryRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d: %s", domain.ErrTransport, resp.StatusCode, truncate(body, 256))
	}

	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrDecode, f.maxBody)
	}

	return Decode(body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
