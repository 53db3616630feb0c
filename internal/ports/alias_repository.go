package ports

import (
	"context"

	"github.com/bft-labs/pit/internal/domain"
)

// AliasRepository persists the alias table of an embedded backend.
type AliasRepository interface {
	// Load returns the saved table, or an empty one if nothing was saved.
	Load(ctx context.Context) (domain.AliasTable, error)

	// Save persists table atomically (write to temp file, then rename).
	Save(ctx context.Context, table domain.AliasTable) error
}
