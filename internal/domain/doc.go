// Package domain contains the core entities and error values for pit.
//
// It has no dependencies on infrastructure concerns (HTTP, the broker, the
// index backend, logging).
//
// # Entities
//
//   - [Thesis]: the document written to the search index
//   - [Notification]: the filter-relevant view of an inbound broker message
//   - [AliasTable]: index and alias bindings of an embedded backend
//
// Errors are sentinel values checked with errors.Is; adapters wrap them with
// the offending identifier.
package domain
