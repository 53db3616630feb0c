// Package pit indexes repository objects announced on a STOMP queue.
//
// A Service reads change notifications from the broker, fetches each
// changed object from the repository and writes a search document under a
// versioned index reached through an alias. Reindex builds a complete new
// version from a collection and switches the alias to it in one step.
//
// Example usage:
//
//	cfg := pit.DefaultConfig()
//	cfg.BrokerHost = "mq.example.edu"
//	svc, err := pit.New(ctx, cfg, pit.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//	return svc.Run(ctx)
package pit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/pit/internal/adapters/bleve"
	"github.com/bft-labs/pit/internal/adapters/elastic"
	"github.com/bft-labs/pit/internal/adapters/fs"
	"github.com/bft-labs/pit/internal/app"
	"github.com/bft-labs/pit/internal/cliconfig"
	"github.com/bft-labs/pit/internal/index"
	"github.com/bft-labs/pit/internal/metrics"
	"github.com/bft-labs/pit/internal/pipeline"
	"github.com/bft-labs/pit/internal/ports"
	"github.com/bft-labs/pit/pkg/log"
	"github.com/bft-labs/pit/pkg/stomp"
)

// Config holds the service configuration. Use DefaultConfig for defaults.
type Config = cliconfig.Config

// State is the worker lifecycle state.
type State = app.State

// Worker states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// StateHandler receives worker state transitions.
type StateHandler = app.EventEmitter

type (
	// CollectionReport is the outcome of a collection reindex.
	CollectionReport = pipeline.CollectionReport

	// SearchResult is a page of search hits.
	SearchResult = ports.SearchResult
)

// DefaultHTTPTimeout bounds each repository and Elasticsearch request.
const DefaultHTTPTimeout = 30 * time.Second

// ErrSearchUnsupported is returned by Search when the backend cannot search.
var ErrSearchUnsupported = errors.New("search is not supported by this backend")

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Service wires the broker, pipeline and index together.
type Service struct {
	config   Config
	opts     options
	logger   log.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	backend  ports.IndexBackend
	searcher ports.Searcher
	closer   func() error

	manager  *index.Manager
	pipeline *pipeline.Pipeline
}

// New validates cfg and opens the index backend. It does not touch the
// broker or the index contents.
func New(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	m, err := metrics.New(o.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s := &Service{
		config:   cfg,
		opts:     o,
		logger:   o.logger,
		metrics:  m,
		registry: o.registry,
	}
	if err := s.openBackend(ctx); err != nil {
		return nil, err
	}

	s.manager = index.NewManager(s.backend, cfg.IndexName, s.logger, m)
	fetcher := pipeline.NewFetcher(o.httpClient, pipeline.FetcherConfig{
		RateLimit:   cfg.FetchRate,
		RewriteHost: cfg.RepoRewriteHost,
	})
	s.pipeline = pipeline.New(fetcher, s.manager, s.logger, m)
	return s, nil
}

func (s *Service) openBackend(ctx context.Context) error {
	switch s.config.IndexBackend {
	case cliconfig.BackendBleve:
		var repo ports.AliasRepository
		if s.config.IndexDir != "" {
			repo = fs.NewAliasFileRepository(s.config.IndexDir)
		}
		b, err := bleve.Open(ctx, s.config.IndexDir, repo, s.logger)
		if err != nil {
			return fmt.Errorf("open bleve backend: %w", err)
		}
		s.backend, s.searcher, s.closer = b, b, b.Close
	default:
		c := elastic.New(elastic.Config{URL: s.config.IndexURL}, s.opts.httpClient, s.logger)
		s.backend, s.searcher, s.closer = c, c, func() error { return nil }
	}
	return nil
}

// Close releases the index backend.
func (s *Service) Close() error {
	return s.closer()
}

// Registry returns the registry holding the service metrics.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// Run initializes the index, connects to the broker and indexes
// notifications until ctx is cancelled or the connection fails. A clean
// cancellation returns nil.
func (s *Service) Run(ctx context.Context) error {
	if err := s.manager.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}

	if s.config.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, s.config.MetricsAddr, s.registry, s.logger); err != nil {
				s.logger.Error("metrics endpoint failed", log.Err(err))
			}
		}()
	}

	dialer := s.opts.dialer
	if dialer == nil {
		dialer = s.dialer()
	}
	session := stomp.NewProtocol(dialer, stomp.Options{
		Login:           s.config.BrokerLogin,
		Passcode:        s.config.BrokerPasscode,
		ServerHeartbeat: s.config.Heartbeat,
	})

	worker := app.NewWorker(app.WorkerConfig{
		Queue:               s.config.Queue,
		ConnectTimeout:      s.config.ConnectTimeout,
		HeartbeatMultiplier: s.config.HeartbeatGrace,
		ShutdownTimeout:     s.config.ShutdownTimeout,
	}, session, s.pipeline.OnNotification, s.logger, s.metrics, s.opts.stateChanges)
	return worker.Run(ctx)
}

func (s *Service) dialer() stomp.Dialer {
	if s.config.BrokerURL != "" {
		return &stomp.WebSocketDialer{
			URL:              s.config.BrokerURL,
			HandshakeTimeout: s.config.ConnectTimeout,
		}
	}
	d := stomp.NewTCPDialer(s.config.BrokerHost, s.config.BrokerPort)
	d.Timeout = s.config.ConnectTimeout
	return d
}

// Reindex builds a new version from every member of collection and makes
// it current. On failure the alias is left unchanged. Members that fail to
// index are reported, not fatal.
func (s *Service) Reindex(ctx context.Context, collection string, concurrency int) (CollectionReport, string, error) {
	if concurrency <= 0 {
		concurrency = s.config.Concurrency
	}
	if err := s.manager.Initialize(ctx); err != nil {
		return CollectionReport{}, "", fmt.Errorf("initialize index: %w", err)
	}

	var report CollectionReport
	version, err := s.manager.Rebuild(ctx, func(ctx context.Context, w *index.VersionWriter) error {
		var err error
		report, err = s.pipeline.IndexCollection(ctx, collection, w, concurrency)
		return err
	})
	if err != nil {
		return report, "", err
	}
	return report, version, nil
}

// Index fetches uri and writes it through the alias.
func (s *Service) Index(ctx context.Context, uri string) error {
	_, err := s.pipeline.IndexDocument(ctx, s.manager, uri)
	return err
}

// Versions returns the versions bound to the alias.
func (s *Service) Versions(ctx context.Context) ([]string, error) {
	return s.manager.Versions(ctx)
}

// Search runs a free-text query against the alias.
func (s *Service) Search(ctx context.Context, query string, size int) (SearchResult, error) {
	if s.searcher == nil {
		return SearchResult{}, ErrSearchUnsupported
	}
	return s.searcher.Search(ctx, s.manager.Name(), query, size)
}
