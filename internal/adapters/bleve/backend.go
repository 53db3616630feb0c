// Package bleve implements ports.IndexBackend with embedded bleve indices.
//
// Each physical version is a bleve index (on disk under the backend
// directory, or in memory). Each logical name is a bleve IndexAlias; an
// alias update is validated as a whole and applied under the backend lock
// with IndexAlias.Swap, so searches and writes through an alias see either
// the old or the new binding. Bindings survive restarts through the
// AliasRepository.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	blevesearch "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/ports"
	"github.com/bft-labs/pit/pkg/log"
)

var (
	// ErrIndexNotFound is returned for operations on an unknown index or alias.
	ErrIndexNotFound = errors.New("bleve: index not found")

	// ErrIndexExists is returned when creating an index that already exists.
	ErrIndexExists = errors.New("bleve: index already exists")

	// ErrAmbiguousAlias is returned when writing through an alias bound to
	// more than one index.
	ErrAmbiguousAlias = errors.New("bleve: alias is not bound to exactly one index")
)

// Backend holds the open indices and aliases.
type Backend struct {
	dir    string
	repo   ports.AliasRepository
	logger log.Logger

	mu      sync.RWMutex
	closed  bool
	table   domain.AliasTable
	indices map[string]blevesearch.Index
	aliases map[string]blevesearch.IndexAlias
}

// Open loads the backend. An empty dir keeps every index in memory and
// repo may then be nil.
func Open(ctx context.Context, dir string, repo ports.AliasRepository, logger log.Logger) (*Backend, error) {
	b := &Backend{
		dir:     dir,
		repo:    repo,
		logger:  logger,
		table:   domain.NewAliasTable(),
		indices: make(map[string]blevesearch.Index),
		aliases: make(map[string]blevesearch.IndexAlias),
	}
	if repo == nil {
		return b, nil
	}

	table, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	for _, name := range table.Indices {
		idx, err := blevesearch.Open(b.path(name))
		if err != nil {
			b.closeAll()
			return nil, fmt.Errorf("open index %s: %w", name, err)
		}
		b.indices[name] = idx
	}
	b.table = table
	for alias, bound := range table.Aliases {
		members := make([]blevesearch.Index, 0, len(bound))
		for _, name := range bound {
			idx, ok := b.indices[name]
			if !ok {
				b.closeAll()
				return nil, fmt.Errorf("%w: alias %s points at %s", ErrIndexNotFound, alias, name)
			}
			members = append(members, idx)
		}
		b.aliases[alias] = blevesearch.NewIndexAlias(members...)
	}
	logger.Debug("opened bleve backend",
		log.String("dir", dir),
		log.Int("indices", len(b.indices)),
		log.Int("aliases", len(b.aliases)),
	)
	return b, nil
}

// Close closes every index.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.closeAll()
}

func (b *Backend) closeAll() error {
	var errs []error
	for name, idx := range b.indices {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) path(name string) string {
	return filepath.Join(b.dir, name)
}

// ExistsAlias reports whether alias is bound to any index.
func (b *Backend) ExistsAlias(ctx context.Context, alias string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.table.Aliases[alias]) > 0, nil
}

// GetAlias returns the indices bound to alias, sorted.
func (b *Backend) GetAlias(ctx context.Context, alias string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bound := slices.Clone(b.table.Aliases[alias])
	slices.Sort(bound)
	return bound, nil
}

// UpdateAliases applies all actions or none.
func (b *Backend) UpdateAliases(ctx context.Context, actions []ports.AliasAction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.table.Clone()
	for _, a := range actions {
		if !next.HasIndex(a.Index) {
			return fmt.Errorf("%w: %s", ErrIndexNotFound, a.Index)
		}
		if next.HasIndex(a.Alias) {
			return fmt.Errorf("bleve: alias %s collides with an index name", a.Alias)
		}
		bound := next.Aliases[a.Alias]
		switch a.Op {
		case ports.AliasAdd:
			if !slices.Contains(bound, a.Index) {
				bound = append(bound, a.Index)
			}
		case ports.AliasRemove:
			if !slices.Contains(bound, a.Index) {
				return fmt.Errorf("%w: %s is not bound to %s", ErrIndexNotFound, a.Alias, a.Index)
			}
			bound = slices.DeleteFunc(bound, func(v string) bool { return v == a.Index })
		default:
			return fmt.Errorf("bleve: unknown alias op %q", a.Op)
		}
		if len(bound) == 0 {
			delete(next.Aliases, a.Alias)
		} else {
			next.Aliases[a.Alias] = bound
		}
	}

	if err := b.save(ctx, next); err != nil {
		return err
	}
	b.swap(next)
	return nil
}

// swap moves every IndexAlias to the bindings in next. Callers hold b.mu.
func (b *Backend) swap(next domain.AliasTable) {
	touched := make(map[string]struct{})
	for alias := range b.table.Aliases {
		touched[alias] = struct{}{}
	}
	for alias := range next.Aliases {
		touched[alias] = struct{}{}
	}

	for alias := range touched {
		before, after := b.table.Aliases[alias], next.Aliases[alias]
		var in, out []blevesearch.Index
		for _, name := range after {
			if !slices.Contains(before, name) {
				in = append(in, b.indices[name])
			}
		}
		for _, name := range before {
			if !slices.Contains(after, name) {
				out = append(out, b.indices[name])
			}
		}
		if len(in) == 0 && len(out) == 0 {
			continue
		}
		ia, ok := b.aliases[alias]
		if !ok {
			ia = blevesearch.NewIndexAlias()
			b.aliases[alias] = ia
		}
		ia.Swap(in, out)
		if len(after) == 0 {
			delete(b.aliases, alias)
		}
	}
	b.table = next
}

// CreateIndex creates an empty index with a mapping derived from schema.
func (b *Backend) CreateIndex(ctx context.Context, name string, schema ports.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.table.HasIndex(name) {
		return fmt.Errorf("%w: %s", ErrIndexExists, name)
	}
	if _, ok := b.table.Aliases[name]; ok {
		return fmt.Errorf("bleve: index %s collides with an alias name", name)
	}

	var (
		idx blevesearch.Index
		err error
	)
	if b.dir == "" {
		idx, err = blevesearch.NewMemOnly(indexMapping(schema))
	} else {
		if err := os.MkdirAll(b.dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", b.dir, err)
		}
		idx, err = blevesearch.New(b.path(name), indexMapping(schema))
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	next := b.table.Clone()
	next.Indices = append(next.Indices, name)
	if err := b.save(ctx, next); err != nil {
		_ = idx.Close()
		b.removeFiles(name)
		return err
	}
	b.indices[name] = idx
	b.table = next
	return nil
}

// DeleteIndex closes and removes names, unbinding them from any alias.
// Unknown names are skipped.
func (b *Backend) DeleteIndex(ctx context.Context, names ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.table.Clone()
	var doomed []string
	for _, name := range names {
		if !next.HasIndex(name) {
			continue
		}
		doomed = append(doomed, name)
		next.Indices = slices.DeleteFunc(next.Indices, func(v string) bool { return v == name })
		for alias, bound := range next.Aliases {
			bound = slices.DeleteFunc(bound, func(v string) bool { return v == name })
			if len(bound) == 0 {
				delete(next.Aliases, alias)
			} else {
				next.Aliases[alias] = bound
			}
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	if err := b.save(ctx, next); err != nil {
		return err
	}
	b.swap(next)

	var errs []error
	for _, name := range doomed {
		if err := b.indices[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(b.indices, name)
		b.removeFiles(name)
	}
	return errors.Join(errs...)
}

func (b *Backend) removeFiles(name string) {
	if b.dir == "" {
		return
	}
	if err := os.RemoveAll(b.path(name)); err != nil {
		b.logger.Warn("failed to remove index files", log.String("index", name), log.Err(err))
	}
}

// IndexDocument writes doc to a physical index or through an alias bound
// to exactly one index.
func (b *Backend) IndexDocument(ctx context.Context, index, id string, doc any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	target := index
	if bound, ok := b.table.Aliases[index]; ok {
		if len(bound) != 1 {
			return fmt.Errorf("%w: %s -> %v", ErrAmbiguousAlias, index, bound)
		}
		target = bound[0]
	}
	idx, ok := b.indices[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	return idx.Index(id, doc)
}

// Search runs a match query against an alias or a physical index.
func (b *Backend) Search(ctx context.Context, index, query string, size int) (ports.SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var target blevesearch.Index
	if ia, ok := b.aliases[index]; ok {
		target = ia
	} else if idx, ok := b.indices[index]; ok {
		target = idx
	} else {
		return ports.SearchResult{}, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	if size <= 0 {
		size = 10
	}

	req := blevesearch.NewSearchRequestOptions(blevesearch.NewMatchQuery(query), size, 0, false)
	req.Fields = []string{"*"}
	res, err := target.SearchInContext(ctx, req)
	if err != nil {
		return ports.SearchResult{}, fmt.Errorf("search %s: %w", index, err)
	}

	result := ports.SearchResult{Total: res.Total}
	for _, hit := range res.Hits {
		source, err := json.Marshal(hit.Fields)
		if err != nil {
			return ports.SearchResult{}, fmt.Errorf("encode hit %s: %w", hit.ID, err)
		}
		result.Hits = append(result.Hits, ports.Hit{ID: hit.ID, Score: hit.Score, Source: source})
	}
	return result, nil
}

func (b *Backend) save(ctx context.Context, table domain.AliasTable) error {
	if b.repo == nil {
		return nil
	}
	if err := b.repo.Save(ctx, table); err != nil {
		return fmt.Errorf("save aliases: %w", err)
	}
	return nil
}

func indexMapping(schema ports.Schema) *mapping.IndexMappingImpl {
	doc := blevesearch.NewDocumentMapping()
	for name, typ := range schema.Fields {
		var fm *mapping.FieldMapping
		switch typ {
		case ports.FieldKeyword:
			fm = blevesearch.NewKeywordFieldMapping()
		case ports.FieldDate:
			fm = blevesearch.NewDateTimeFieldMapping()
		default:
			fm = blevesearch.NewTextFieldMapping()
		}
		fm.Store = true
		doc.AddFieldMappingsAt(name, fm)
	}

	im := blevesearch.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}
