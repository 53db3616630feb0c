// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// The index version manager, the document pipeline and the CLI depend only on
// these interfaces. Adapters under internal/adapters implement them with
// concrete infrastructure (an Elasticsearch cluster over HTTP, embedded bleve
// indices, a JSON file on disk).
//
// # Port Interfaces
//
//   - [IndexBackend]: physical indices, aliases and document writes
//   - [Searcher]: optional query support offered by some backends
//   - [AliasRepository]: persists alias bindings for embedded backends
//   - [HTTPClient]: HTTP request abstraction for dependency injection
package ports
