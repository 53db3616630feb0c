package elastic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/ports"
	"github.com/bft-labs/pit/pkg/log"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// cluster is a scripted Elasticsearch stand-in. Responses are consumed in
// order; when they run out every request gets 200 {}.
type cluster struct {
	*httptest.Server
	mu        sync.Mutex
	requests  []recorded
	responses []response
}

type response struct {
	status int
	body   string
}

func newCluster(t *testing.T, responses ...response) *cluster {
	t.Helper()
	c := &cluster{responses: responses}
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		resp := response{status: http.StatusOK, body: "{}"}
		if len(c.responses) > 0 {
			resp, c.responses = c.responses[0], c.responses[1:]
		}
		c.mu.Unlock()
		w.WriteHeader(resp.status)
		_, _ = io.WriteString(w, resp.body)
	}))
	t.Cleanup(c.Close)
	return c
}

func (c *cluster) client() *Client {
	return New(Config{URL: c.URL + "/", BackoffInitial: time.Millisecond, BackoffMax: 2 * time.Millisecond}, c.Client(), log.NewNoopLogger())
}

func (c *cluster) recorded() []recorded {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recorded(nil), c.requests...)
}

func TestClient_ExistsAlias(t *testing.T) {
	c := newCluster(t, response{status: 200}, response{status: 404})
	es := c.client()

	ok, err := es.ExistsAlias(context.Background(), "theses")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = es.ExistsAlias(context.Background(), "theses")
	require.NoError(t, err)
	assert.False(t, ok)

	reqs := c.recorded()
	assert.Equal(t, http.MethodHead, reqs[0].Method)
	assert.Equal(t, "/_alias/theses", reqs[0].Path)
}

func TestClient_GetAlias(t *testing.T) {
	c := newCluster(t, response{status: 200, body: `{"theses-2":{"aliases":{"theses":{}}},"theses-1":{"aliases":{"theses":{}}}}`})

	indices, err := c.client().GetAlias(context.Background(), "theses")
	require.NoError(t, err)
	assert.Equal(t, []string{"theses-1", "theses-2"}, indices)
}

func TestClient_UpdateAliasesBody(t *testing.T) {
	c := newCluster(t)

	err := c.client().UpdateAliases(context.Background(), []ports.AliasAction{
		{Op: ports.AliasRemove, Index: "theses-1", Alias: "theses"},
		{Op: ports.AliasAdd, Index: "theses-2", Alias: "theses"},
	})
	require.NoError(t, err)

	reqs := c.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/_aliases", reqs[0].Path)
	assert.JSONEq(t, `{"actions":[
		{"remove":{"index":"theses-1","alias":"theses"}},
		{"add":{"index":"theses-2","alias":"theses"}}
	]}`, reqs[0].Body)
}

func TestClient_UpdateAliasesNeverRetried(t *testing.T) {
	c := newCluster(t, response{status: 503, body: "unavailable"})

	err := c.client().UpdateAliases(context.Background(), []ports.AliasAction{{Op: ports.AliasAdd, Index: "a", Alias: "b"}})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 503, serr.Status)
	assert.Len(t, c.recorded(), 1)
}

func TestClient_RetriesSafeOperations(t *testing.T) {
	c := newCluster(t, response{status: 503}, response{status: 429}, response{status: 201})

	err := c.client().IndexDocument(context.Background(), "theses", "http://repo/theses/1", domain.Thesis{URI: "http://repo/theses/1"})
	require.NoError(t, err)

	reqs := c.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodPut, reqs[2].Method)
	assert.Equal(t, "/theses/_doc/http://repo/theses/1", reqs[2].Path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[2].Body), &doc))
	assert.Equal(t, "http://repo/theses/1", doc["uri"])
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	c := newCluster(t,
		response{status: 500}, response{status: 500}, response{status: 500}, response{status: 500},
	)

	err := c.client().CreateIndex(context.Background(), "theses-1", ports.Schema{})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Len(t, c.recorded(), 1+DefaultMaxRetries)
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	c := newCluster(t, response{status: 400, body: `{"error":"resource_already_exists_exception"}`})

	err := c.client().CreateIndex(context.Background(), "theses-1", ports.Schema{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource_already_exists_exception")
	assert.Len(t, c.recorded(), 1)
}

func TestClient_CreateIndexMapping(t *testing.T) {
	c := newCluster(t)

	schema := ports.Schema{Fields: map[string]ports.FieldType{"title": ports.FieldText, "uri": ports.FieldKeyword}}
	require.NoError(t, c.client().CreateIndex(context.Background(), "theses-1", schema))

	reqs := c.recorded()
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/theses-1", reqs[0].Path)
	assert.JSONEq(t, `{"mappings":{"properties":{"title":{"type":"text"},"uri":{"type":"keyword"}}}}`, reqs[0].Body)
}

func TestClient_DeleteIndex(t *testing.T) {
	c := newCluster(t, response{status: 200, body: `{"acknowledged":true}`})
	es := c.client()

	require.NoError(t, es.DeleteIndex(context.Background(), "theses-1", "theses-2"))
	require.NoError(t, es.DeleteIndex(context.Background()))

	reqs := c.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, "/theses-1,theses-2", reqs[0].Path)
	assert.Equal(t, "ignore_unavailable=true", reqs[0].Query)
}

func TestClient_DeleteIndexNotFoundIsError(t *testing.T) {
	// With ignore_unavailable a 404 means the path itself was rejected,
	// not that an index was missing.
	c := newCluster(t, response{status: 404, body: `{"error":"no handler"}`})

	err := c.client().DeleteIndex(context.Background(), "theses-1")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.Status)
	assert.Len(t, c.recorded(), 1, "404 is not retried")
}

func TestClient_Search(t *testing.T) {
	c := newCluster(t, response{status: 200, body: `{"hits":{"total":{"value":1},"hits":[
		{"_id":"http://repo/theses/1","_score":1.5,"_source":{"uri":"http://repo/theses/1"}}
	]}}`})

	res, err := c.client().Search(context.Background(), "theses", "engineering", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "http://repo/theses/1", res.Hits[0].ID)
	assert.Equal(t, 1.5, res.Hits[0].Score)

	reqs := c.recorded()
	assert.Equal(t, "/theses/_search", reqs[0].Path)
	assert.Contains(t, reqs[0].Body, `"engineering"`)
}

func TestClient_ContextCancelStopsRetry(t *testing.T) {
	c := newCluster(t, response{status: 503}, response{status: 503})
	es := New(Config{URL: c.URL, BackoffInitial: time.Hour}, c.Client(), log.NewNoopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := es.ExistsAlias(ctx, "theses")
	require.Error(t, err)
	assert.Len(t, c.recorded(), 1)
}

func TestBackoff_Doubles(t *testing.T) {
	b := newBackoff(time.Millisecond, 4*time.Millisecond)
	for range 4 {
		require.NoError(t, b.Sleep(context.Background()))
	}
	assert.Equal(t, 4*time.Millisecond, b.Current())
	b.Reset()
	assert.Equal(t, time.Millisecond, b.Current())
}
