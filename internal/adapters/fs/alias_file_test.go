package fs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pit/internal/domain"
)

func TestAliasFileRepository_LoadMissing(t *testing.T) {
	r := NewAliasFileRepository(t.TempDir())

	table, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, table.Indices)
	assert.NotNil(t, table.Aliases)
}

func TestAliasFileRepository_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	r := NewAliasFileRepository(dir)

	table := domain.NewAliasTable()
	table.Indices = []string{"theses-1700000000.000001"}
	table.Aliases["theses"] = []string{"theses-1700000000.000001"}
	require.NoError(t, r.Save(context.Background(), table))

	_, err := os.Stat(r.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	got, err := NewAliasFileRepository(dir).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestAliasFileRepository_LoadCorrupt(t *testing.T) {
	r := NewAliasFileRepository(t.TempDir())
	require.NoError(t, os.WriteFile(r.Path(), []byte("{not json"), 0o644))

	_, err := r.Load(context.Background())
	assert.Error(t, err)
}
