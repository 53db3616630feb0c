package ports

import (
	"context"
	"encoding/json"
)

// AliasOp is the kind of an alias action.
type AliasOp string

const (
	AliasAdd    AliasOp = "add"
	AliasRemove AliasOp = "remove"
)

// AliasAction binds or unbinds one physical index from an alias.
type AliasAction struct {
	Op    AliasOp
	Index string
	Alias string
}

// FieldType is the storage type of a document field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldKeyword FieldType = "keyword"
	FieldDate    FieldType = "date"
)

// Schema describes the fields of a physical index.
type Schema struct {
	Fields map[string]FieldType
}

// IndexBackend is the search engine the index manager drives.
//
// UpdateAliases must apply the whole batch atomically: readers of the alias
// observe either the old bindings or the new ones, never a mix.
type IndexBackend interface {
	ExistsAlias(ctx context.Context, alias string) (bool, error)
	GetAlias(ctx context.Context, alias string) ([]string, error)
	UpdateAliases(ctx context.Context, actions []AliasAction) error

	CreateIndex(ctx context.Context, name string, schema Schema) error
	DeleteIndex(ctx context.Context, names ...string) error

	// IndexDocument writes doc under id. index may be a physical name or an
	// alias bound to exactly one physical index.
	IndexDocument(ctx context.Context, index, id string, doc any) error
}

// Hit is one search result.
type Hit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}

// SearchResult is a page of hits.
type SearchResult struct {
	Total uint64
	Hits  []Hit
}

// Searcher runs a free-text query against an index or alias.
type Searcher interface {
	Search(ctx context.Context, index, query string, size int) (SearchResult, error)
}
