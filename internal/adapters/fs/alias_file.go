package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/pit/internal/domain"
)

const aliasFileName = "aliases.json"

// AliasFileRepository implements ports.AliasRepository using a JSON file.
type AliasFileRepository struct {
	dir string
}

// NewAliasFileRepository creates a repository storing aliases.json in dir.
func NewAliasFileRepository(dir string) *AliasFileRepository {
	return &AliasFileRepository{dir: dir}
}

// Load reads the alias table from disk.
// Returns an empty table and nil error if no file exists.
func (r *AliasFileRepository) Load(ctx context.Context) (domain.AliasTable, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewAliasTable(), nil
		}
		return domain.AliasTable{}, err
	}

	table := domain.NewAliasTable()
	if err := json.Unmarshal(data, &table); err != nil {
		return domain.AliasTable{}, err
	}
	if table.Aliases == nil {
		table.Aliases = make(map[string][]string)
	}
	return table, nil
}

// Save persists the table atomically.
func (r *AliasFileRepository) Save(ctx context.Context, table domain.AliasTable) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the alias file.
func (r *AliasFileRepository) Path() string {
	return filepath.Join(r.dir, aliasFileName)
}
