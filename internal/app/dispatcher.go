package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/pit/internal/metrics"
	"github.com/bft-labs/pit/pkg/log"
	"github.com/bft-labs/pit/pkg/stomp"
)

// Session is the part of a STOMP session the dispatcher reads from.
type Session interface {
	ReceiveFrame(ctx context.Context) (stomp.Frame, error)
	Message(f stomp.Frame) (stomp.SubscriptionToken, error)
	Subscription(token stomp.SubscriptionToken) (stomp.Subscription, bool)
}

// HandlerTracker counts handler goroutines so shutdown can wait for them.
// *Lifecycle satisfies it.
type HandlerTracker interface {
	AddWorker()
	WorkerDone()
	WaitWithTimeout(timeout time.Duration) error
}

// Dispatcher reads frames in socket order and hands MESSAGE frames to
// their subscription handler on a new goroutine.
type Dispatcher struct {
	session  Session
	handlers HandlerTracker
	logger   log.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher over session.
func NewDispatcher(session Session, handlers HandlerTracker, logger log.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		session:  session,
		handlers: handlers,
		logger:   logger,
		metrics:  m,
	}
}

// Run loops until ctx is done (returns nil) or the session fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		f, err := d.session.ReceiveFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dispatch: %w", err)
		}
		d.metrics.FrameReceived(f.Command)

		switch f.Command {
		case "":
		case stomp.CommandMessage:
			d.dispatch(ctx, f)
		case stomp.CommandError:
			d.logger.Warn("broker sent ERROR frame",
				log.String("message", f.Header(stomp.HeaderMessage)),
				log.String("body", string(f.Body)),
			)
		default:
			d.logger.Debug("ignoring frame", log.String("command", f.Command))
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, f stomp.Frame) {
	token, err := d.session.Message(f)
	if err != nil {
		d.logger.Debug("ignoring message", log.Err(err))
		return
	}
	sub, ok := d.session.Subscription(token)
	if !ok || sub.Handler == nil {
		d.logger.Debug("message for unknown subscription", log.String("subscription", token.ID))
		return
	}

	d.handlers.AddWorker()
	d.metrics.HandlerStarted()
	go func() {
		defer d.handlers.WorkerDone()
		defer d.metrics.HandlerDone()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("subscription handler panicked",
					log.String("subscription", sub.ID),
					log.Any("panic", r),
				)
			}
		}()
		sub.Handler(ctx, f)
	}()
}

// Wait blocks until launched handlers finish or timeout elapses.
func (d *Dispatcher) Wait(timeout time.Duration) error {
	return d.handlers.WaitWithTimeout(timeout)
}
