package pit

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/pit/internal/app"
	"github.com/bft-labs/pit/internal/ports"
	"github.com/bft-labs/pit/pkg/log"
	"github.com/bft-labs/pit/pkg/stomp"
)

// Option configures optional behavior of a Service.
type Option func(*options)

type options struct {
	logger       log.Logger
	httpClient   ports.HTTPClient
	registry     *prometheus.Registry
	dialer       stomp.Dialer
	stateChanges app.EventEmitter
}

func defaultOptions() options {
	return options{logger: log.NewNoopLogger()}
}

// WithLogger sets the logger. Without it nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sets the client used for the repository and Elasticsearch.
func WithHTTPClient(client ports.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithDialer overrides the broker dialer derived from the config.
func WithDialer(d stomp.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithStateHandler is called on every worker state transition.
func WithStateHandler(h StateHandler) Option {
	return func(o *options) {
		o.stateChanges = h
	}
}
