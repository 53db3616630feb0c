// Package elastic implements ports.IndexBackend against the Elasticsearch
// REST API.
//
// Every operation except the alias update is retried on network errors and
// 429/5xx responses with jittered exponential backoff. The alias update is
// sent exactly once: the caller decides what a failed swap means.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/bft-labs/pit/internal/ports"
	"github.com/bft-labs/pit/pkg/log"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 1024

// Config configures the client.
type Config struct {
	// URL is the cluster base URL, e.g. http://localhost:9200.
	URL string

	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Client talks to one Elasticsearch cluster.
type Client struct {
	base       string
	http       ports.HTTPClient
	logger     log.Logger
	maxRetries int
	initial    time.Duration
	max        time.Duration
}

// New creates a client. A nil httpClient means http.DefaultClient.
func New(cfg Config, httpClient ports.HTTPClient, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	return &Client{
		base:       strings.TrimRight(cfg.URL, "/"),
		http:       httpClient,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		initial:    cfg.BackoffInitial,
		max:        cfg.BackoffMax,
	}
}

// StatusError is a non-2xx answer from the cluster.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elastic: %s: server returned %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status/100 == 5
}

// ExistsAlias reports whether alias is bound to any index.
func (c *Client) ExistsAlias(ctx context.Context, alias string) (bool, error) {
	status, _, err := c.do(ctx, "exists alias", true, http.MethodHead, "/_alias/"+url.PathEscape(alias), nil, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

// GetAlias returns the indices bound to alias, sorted.
func (c *Client) GetAlias(ctx context.Context, alias string) ([]string, error) {
	status, body, err := c.do(ctx, "get alias", true, http.MethodGet, "/_alias/"+url.PathEscape(alias), nil, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("elastic: get alias: decode: %w", err)
	}
	indices := make([]string, 0, len(resp))
	for name := range resp {
		indices = append(indices, name)
	}
	slices.Sort(indices)
	return indices, nil
}

type aliasTarget struct {
	Index string `json:"index"`
	Alias string `json:"alias"`
}

// UpdateAliases applies actions in one request. Never retried.
func (c *Client) UpdateAliases(ctx context.Context, actions []ports.AliasAction) error {
	body := struct {
		Actions []map[string]aliasTarget `json:"actions"`
	}{Actions: make([]map[string]aliasTarget, 0, len(actions))}
	for _, a := range actions {
		body.Actions = append(body.Actions, map[string]aliasTarget{
			string(a.Op): {Index: a.Index, Alias: a.Alias},
		})
	}
	_, _, err := c.do(ctx, "update aliases", false, http.MethodPost, "/_aliases", body)
	return err
}

// CreateIndex creates name with a mapping derived from schema.
func (c *Client) CreateIndex(ctx context.Context, name string, schema ports.Schema) error {
	_, _, err := c.do(ctx, "create index", true, http.MethodPut, "/"+url.PathEscape(name), mappingFor(schema))
	return err
}

// DeleteIndex deletes names in one request. Names that do not exist are
// skipped by the cluster; the rest are still deleted.
func (c *Client) DeleteIndex(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	escaped := make([]string, 0, len(names))
	for _, n := range names {
		escaped = append(escaped, url.PathEscape(n))
	}
	path := "/" + strings.Join(escaped, ",") + "?ignore_unavailable=true"
	_, _, err := c.do(ctx, "delete index", true, http.MethodDelete, path, nil)
	return err
}

// IndexDocument writes doc under id, replacing any previous version.
func (c *Client) IndexDocument(ctx context.Context, index, id string, doc any) error {
	path := "/" + url.PathEscape(index) + "/_doc/" + url.PathEscape(id)
	_, _, err := c.do(ctx, "index document", true, http.MethodPut, path, doc)
	return err
}

// Search runs a multi-field match query.
func (c *Client) Search(ctx context.Context, index, query string, size int) (ports.SearchResult, error) {
	if size <= 0 {
		size = 10
	}
	req := map[string]any{
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^3", "abstract^2", "author", "advisor", "department", "description", "full_text"},
			},
		},
	}
	_, body, err := c.do(ctx, "search", true, http.MethodPost, "/"+url.PathEscape(index)+"/_search", req)
	if err != nil {
		return ports.SearchResult{}, err
	}

	var resp struct {
		Hits struct {
			Total struct {
				Value uint64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.SearchResult{}, fmt.Errorf("elastic: search: decode: %w", err)
	}
	result := ports.SearchResult{Total: resp.Hits.Total.Value}
	for _, h := range resp.Hits.Hits {
		result.Hits = append(result.Hits, ports.Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return result, nil
}

func mappingFor(schema ports.Schema) map[string]any {
	props := make(map[string]any, len(schema.Fields))
	for name, typ := range schema.Fields {
		props[name] = map[string]string{"type": string(typ)}
	}
	return map[string]any{"mappings": map[string]any{"properties": props}}
}

// do sends one request, retrying when retry is set. Statuses listed in
// accept are returned without error alongside 2xx.
func (c *Client) do(ctx context.Context, op string, retry bool, method, path string, payload any, accept ...int) (int, []byte, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return 0, nil, fmt.Errorf("elastic: %s: marshal: %w", op, err)
		}
	}

	bo := newBackoff(c.initial, c.max)
	attempts := 1
	if retry {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		status, body, err := c.send(ctx, method, path, data)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("elastic: %s: %w", op, err)
		case status/100 == 2 || slices.Contains(accept, status):
			return status, body, nil
		default:
			serr := &StatusError{Op: op, Status: status, Body: truncate(body)}
			if !serr.retryable() {
				return status, body, serr
			}
			lastErr = serr
		}

		if ctx.Err() != nil || attempt == attempts {
			break
		}
		c.logger.Debug("retrying elasticsearch request",
			log.String("op", op),
			log.Int("attempt", attempt),
			log.Duration("backoff", bo.Current()),
			log.Err(lastErr),
		)
		if err := bo.Sleep(ctx); err != nil {
			break
		}
	}
	return 0, nil, lastErr
}

func (c *Client) send(ctx context.Context, method, path string, data []byte) (int, []byte, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}
