package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/pit/internal/metrics"
	"github.com/bft-labs/pit/pkg/log"
	"github.com/bft-labs/pit/pkg/stomp"
)

// DefaultConnectTimeout bounds the broker handshake.
const DefaultConnectTimeout = 5 * time.Second

// WorkerSession is the STOMP session a Worker drives. *stomp.Protocol
// satisfies it.
type WorkerSession interface {
	Session
	LastReceiver
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, destination string, handler stomp.Handler, subCtx any) (stomp.SubscriptionToken, error)
	Negotiated() (version string, heartbeat time.Duration)
	Disconnect(ctx context.Context) error
}

// WorkerConfig configures one consumer run.
type WorkerConfig struct {
	Queue string

	ConnectTimeout      time.Duration
	HeartbeatMultiplier float64
	ShutdownTimeout     time.Duration

	// Clock drives the heartbeat monitor; nil means the wall clock.
	Clock Clock
}

// Worker connects to the broker, subscribes the handler to the queue and
// runs the dispatcher and heartbeat monitor until either fails or the
// context is cancelled.
type Worker struct {
	config    WorkerConfig
	session   WorkerSession
	handler   stomp.Handler
	lifecycle *Lifecycle
	logger    log.Logger
	metrics   *metrics.Metrics
}

// NewWorker creates a worker. handler runs once per MESSAGE on its own goroutine.
func NewWorker(cfg WorkerConfig, session WorkerSession, handler stomp.Handler, logger log.Logger, m *metrics.Metrics, emitter EventEmitter) *Worker {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = ShutdownTimeout
	}
	if cfg.HeartbeatMultiplier < 1 {
		cfg.HeartbeatMultiplier = DefaultHeartbeatMultiplier
	}
	return &Worker{
		config:    cfg,
		session:   session,
		handler:   handler,
		lifecycle: NewLifecycle(logger, emitter),
		logger:    logger,
		metrics:   m,
	}
}

// State returns the worker's lifecycle state.
func (w *Worker) State() State {
	return w.lifecycle.State()
}

// Stop cancels a running worker. Run returns once teardown completes.
func (w *Worker) Stop() {
	w.lifecycle.Cancel()
}

// Run blocks until the connection ends. It returns nil when ctx is
// cancelled or Stop is called, even mid-handshake, the connect or subscribe error when startup fails, and
// ErrHeartbeatTimeout or a wrapped ErrBrokenTransport when the connection
// is lost. Handlers still running after ShutdownTimeout are abandoned.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.lifecycle.TransitionTo(StateStarting, "run"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.lifecycle.SetCancel(cancel)

	if err := w.start(runCtx); err != nil {
		if runCtx.Err() != nil {
			// Stopped before the subscription was in place.
			_ = w.lifecycle.TransitionTo(StateStopping, "cancelled during connect")
			_ = w.lifecycle.TransitionTo(StateStopped, "cancelled during connect")
			return nil
		}
		_ = w.lifecycle.TransitionTo(StateCrashed, err.Error())
		return err
	}
	if err := w.lifecycle.TransitionTo(StateRunning, "subscribed"); err != nil {
		w.disconnect()
		return err
	}

	dispatcher := NewDispatcher(w.session, w.lifecycle, w.logger, w.metrics)
	version, heartbeat := w.session.Negotiated()
	w.logger.Info("connected to broker",
		log.String("version", version),
		log.String("queue", w.config.Queue),
		log.Duration("heartbeat", heartbeat),
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	if heartbeat > 0 {
		monitor := &HeartbeatMonitor{
			Period:     heartbeat,
			Multiplier: w.config.HeartbeatMultiplier,
			Clock:      w.config.Clock,
			Logger:     w.logger,
			Metrics:    w.metrics,
		}
		g.Go(func() error {
			return monitor.Run(gctx, w.session)
		})
	} else {
		w.logger.Info("broker sends no heartbeats, liveness monitor disabled")
	}
	err := g.Wait()

	reason := "cancelled"
	if err != nil {
		reason = err.Error()
	}
	_ = w.lifecycle.TransitionTo(StateStopping, reason)

	// Handlers share the run context; cancel it before waiting on them.
	cancel()
	w.disconnect()
	// A timeout is logged by the lifecycle and otherwise ignored.
	_ = dispatcher.Wait(w.config.ShutdownTimeout)

	if err != nil {
		w.logger.Warn("connection lost", log.Err(err))
		_ = w.lifecycle.TransitionTo(StateCrashed, reason)
		return err
	}
	_ = w.lifecycle.TransitionTo(StateStopped, reason)
	return nil
}

func (w *Worker) start(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, w.config.ConnectTimeout)
	defer cancel()

	if err := w.session.Connect(connectCtx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if _, err := w.session.Subscribe(ctx, w.config.Queue, w.handler, w.config.Queue); err != nil {
		w.disconnect()
		return fmt.Errorf("subscribe %s: %w", w.config.Queue, err)
	}
	return nil
}

// disconnect tears the session down; errors are logged and discarded.
func (w *Worker) disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
	defer cancel()
	if err := w.session.Disconnect(ctx); err != nil {
		w.logger.Debug("disconnect", log.Err(err))
	}
}
