package app

import (
	"context"
	"time"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/metrics"
	"github.com/bft-labs/pit/pkg/log"
)

// Default heartbeat settings.
const (
	DefaultHeartbeatPeriod     = 60 * time.Second
	DefaultHeartbeatMultiplier = 2.5
)

// Clock is the time source of the heartbeat monitor.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// LastReceiver reports when the connection last delivered a frame.
type LastReceiver interface {
	LastReceived() time.Time
}

// HeartbeatMonitor declares a connection dead when nothing, not even a
// heartbeat, arrives within Period*Multiplier.
type HeartbeatMonitor struct {
	Period     time.Duration
	Multiplier float64
	Clock      Clock
	Logger     log.Logger
	Metrics    *metrics.Metrics
}

// Run checks src until ctx is done (returns nil) or the grace window is
// exceeded (returns ErrHeartbeatTimeout).
func (m *HeartbeatMonitor) Run(ctx context.Context, src LastReceiver) error {
	period := m.Period
	if period <= 0 {
		period = DefaultHeartbeatPeriod
	}
	mult := m.Multiplier
	if mult < 1 {
		mult = DefaultHeartbeatMultiplier
	}
	clock := m.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := m.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	grace := time.Duration(float64(period) * mult)

	for {
		if ctx.Err() != nil {
			return nil
		}

		elapsed := clock.Now().Sub(src.LastReceived())
		var wait time.Duration
		switch {
		case elapsed <= period:
			wait = period - elapsed
		case elapsed <= grace:
			logger.Debug("heartbeat overdue",
				log.Duration("elapsed", elapsed),
				log.Duration("grace", grace),
			)
			wait = grace - elapsed
		default:
			logger.Warn("no frame received within grace window",
				log.Duration("elapsed", elapsed),
				log.Duration("grace", grace),
			)
			m.Metrics.HeartbeatTimeout()
			return domain.ErrHeartbeatTimeout
		}

		select {
		case <-ctx.Done():
			return nil
		case <-clock.After(wait):
		}
	}
}
