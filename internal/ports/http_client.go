package ports

import "net/http"

// HTTPClient abstracts HTTP operations so repository fetches and
// Elasticsearch calls can be served by test doubles.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
