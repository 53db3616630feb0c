package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/ports"
)

// Content negotiation for repository resources.
const (
	AcceptHeader = `application/ld+json; profile="http://www.w3.org/ns/json-ld#expanded"`
	PreferHeader = `return=representation; include="http://fedora.info/definitions/v4/repository#EmbedResources"`
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// FetcherConfig configures repository access.
type FetcherConfig struct {
	// RateLimit is the maximum requests per second; zero disables limiting.
	RateLimit float64
	// Burst is the limiter bucket size; values below 1 mean 1.
	Burst int
	// RewriteHost replaces the host[:port] of every fetched URI when set,
	// for repositories reached through a proxy.
	RewriteHost string
}

// Fetcher retrieves repository resources over HTTP.
type Fetcher struct {
	client  ports.HTTPClient
	limiter *rate.Limiter
	host    string
}

// NewFetcher creates a fetcher using client.
func NewFetcher(client ports.HTTPClient, cfg FetcherConfig) *Fetcher {
	f := &Fetcher{client: client, host: cfg.RewriteHost}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return f
}

// FetchResource returns the expanded JSON-LD representation of uri with
// embedded child resources.
func (f *Fetcher) FetchResource(ctx context.Context, uri string) ([]byte, error) {
	return f.get(ctx, uri, map[string]string{
		"Accept": AcceptHeader,
		"Prefer": PreferHeader,
	})
}

// FetchText returns the content of a file resource.
func (f *Fetcher) FetchText(ctx context.Context, uri string) (string, error) {
	body, err := f.get(ctx, uri, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Rewrite applies the configured host rewrite to uri.
func (f *Fetcher) Rewrite(uri string) (string, error) {
	if f.host == "" {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	u.Host = f.host
	return u.String(), nil
}

func (f *Fetcher) get(ctx context.Context, uri string, headers map[string]string) ([]byte, error) {
	target, err := f.Rewrite(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, uri, err)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, uri, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: create request: %w", domain.ErrFetch, uri, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s: server returned %d: %s", domain.ErrFetch, uri, resp.StatusCode, string(excerpt))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", domain.ErrFetch, uri, err)
	}
	return body, nil
}
