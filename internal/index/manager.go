// Package index manages versioned physical indices behind a stable alias.
//
// Readers and writers only ever address the alias. A rebuild creates a new
// physical version, fills it, and moves the alias in one atomic backend
// call; superseded versions are deleted only after that call succeeds.
package index

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/metrics"
	"github.com/bft-labs/pit/internal/ports"
	"github.com/bft-labs/pit/pkg/log"
)

// DefaultName is the alias theses are served from.
const DefaultName = "theses"

// ThesisSchema is the field layout of every thesis index version.
func ThesisSchema() ports.Schema {
	return ports.Schema{Fields: map[string]ports.FieldType{
		"abstract":       ports.FieldText,
		"advisor":        ports.FieldKeyword,
		"author":         ports.FieldKeyword,
		"copyright_date": ports.FieldKeyword,
		"degree":         ports.FieldText,
		"department":     ports.FieldKeyword,
		"description":    ports.FieldText,
		"handle":         ports.FieldKeyword,
		"published_date": ports.FieldKeyword,
		"title":          ports.FieldText,
		"uri":            ports.FieldKeyword,
		"full_text":      ports.FieldText,
	}}
}

// Manager owns the versions bound to one alias.
type Manager struct {
	backend ports.IndexBackend
	name    string
	schema  ports.Schema
	logger  log.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewManager creates a manager for alias name.
func NewManager(backend ports.IndexBackend, name string, logger log.Logger, m *metrics.Metrics) *Manager {
	if name == "" {
		name = DefaultName
	}
	return &Manager{
		backend: backend,
		name:    name,
		schema:  ThesisSchema(),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Name returns the alias.
func (m *Manager) Name() string {
	return m.name
}

// Initialize creates and binds a first version when the alias is missing.
func (m *Manager) Initialize(ctx context.Context) error {
	exists, err := m.backend.ExistsAlias(ctx, m.name)
	if err != nil {
		return fmt.Errorf("%w: exists alias %s: %w", domain.ErrBackend, m.name, err)
	}
	if exists {
		return nil
	}
	version, err := m.NewVersion(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("initialized index", log.String("alias", m.name), log.String("version", version))
	return m.SetCurrent(ctx, version)
}

// NewVersion creates an empty physical index named
// <alias>-<unix seconds>.<microseconds>. Names issued by one manager
// increase strictly, even when the clock does not advance.
func (m *Manager) NewVersion(ctx context.Context) (string, error) {
	version := m.nextName()
	if err := m.backend.CreateIndex(ctx, version, m.schema); err != nil {
		return "", fmt.Errorf("%w: create index %s: %w", domain.ErrBackend, version, err)
	}
	m.metrics.VersionCreated()
	m.logger.Debug("created index version", log.String("version", version))
	return version, nil
}

func (m *Manager) nextName() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now().UTC().Truncate(time.Microsecond)
	if !ts.After(m.last) {
		ts = m.last.Add(time.Microsecond)
	}
	m.last = ts
	return fmt.Sprintf("%s-%d.%06d", m.name, ts.Unix(), ts.Nanosecond()/1000)
}

// Versions returns the physical indices bound to the alias, sorted.
func (m *Manager) Versions(ctx context.Context) ([]string, error) {
	exists, err := m.backend.ExistsAlias(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("%w: exists alias %s: %w", domain.ErrBackend, m.name, err)
	}
	if !exists {
		return nil, nil
	}
	versions, err := m.backend.GetAlias(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("%w: get alias %s: %w", domain.ErrBackend, m.name, err)
	}
	versions = slices.Clone(versions)
	slices.Sort(versions)
	return versions, nil
}

// Current returns the first bound version, or "" if none.
func (m *Manager) Current(ctx context.Context) (string, error) {
	versions, err := m.Versions(ctx)
	if err != nil || len(versions) == 0 {
		return "", err
	}
	return versions[0], nil
}

// SetCurrent moves the alias to version in a single atomic alias update,
// then deletes the versions it replaced. A failed update leaves the alias
// as it was and deletes nothing.
func (m *Manager) SetCurrent(ctx context.Context, version string) error {
	bound, err := m.Versions(ctx)
	if err != nil {
		return err
	}

	actions := make([]ports.AliasAction, 0, len(bound)+1)
	for _, v := range bound {
		actions = append(actions, ports.AliasAction{Op: ports.AliasRemove, Index: v, Alias: m.name})
	}
	actions = append(actions, ports.AliasAction{Op: ports.AliasAdd, Index: version, Alias: m.name})

	err = m.backend.UpdateAliases(ctx, actions)
	m.metrics.AliasSwap(err)
	if err != nil {
		return fmt.Errorf("%w: update aliases %s -> %s: %w", domain.ErrBackend, m.name, version, err)
	}
	m.logger.Info("alias swapped",
		log.String("alias", m.name),
		log.String("current", version),
		log.Strings("previous", bound),
	)

	superseded := slices.DeleteFunc(bound, func(v string) bool { return v == version })
	if len(superseded) == 0 {
		return nil
	}
	// The cutover is done; a failed cleanup only leaves orphaned versions.
	if err := m.backend.DeleteIndex(ctx, superseded...); err != nil {
		m.logger.Warn("failed to delete superseded versions",
			log.Strings("versions", superseded),
			log.Err(err),
		)
	}
	return nil
}

// Add writes doc through the alias, keyed by its URI.
func (m *Manager) Add(ctx context.Context, doc domain.Thesis) error {
	return m.backend.IndexDocument(ctx, m.name, doc.ID(), doc)
}

// VersionWriter writes documents straight into one physical version. It is
// only handed out while that version is being rebuilt.
type VersionWriter struct {
	backend ports.IndexBackend
	version string
}

// Version returns the physical index name.
func (w *VersionWriter) Version() string {
	return w.version
}

// Add writes doc to the version, keyed by its URI.
func (w *VersionWriter) Add(ctx context.Context, doc domain.Thesis) error {
	return w.backend.IndexDocument(ctx, w.version, doc.ID(), doc)
}

// Rebuild fills a fresh version with build and cuts the alias over to it.
// If build or the cutover fails the new version is deleted and the alias
// keeps pointing at the old one.
func (m *Manager) Rebuild(ctx context.Context, build func(ctx context.Context, target *VersionWriter) error) (string, error) {
	version, err := m.NewVersion(ctx)
	if err != nil {
		return "", err
	}

	if err := build(ctx, &VersionWriter{backend: m.backend, version: version}); err != nil {
		m.discard(ctx, version)
		return "", fmt.Errorf("rebuild %s: %w", version, err)
	}
	if err := m.SetCurrent(ctx, version); err != nil {
		m.discard(ctx, version)
		return "", err
	}
	return version, nil
}

func (m *Manager) discard(ctx context.Context, version string) {
	if err := m.backend.DeleteIndex(context.WithoutCancel(ctx), version); err != nil {
		m.logger.Warn("failed to delete abandoned version", log.String("version", version), log.Err(err))
	}
}
