package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/pkg/log"
)

// ShutdownTimeout is the default time subscription handlers get to finish
// once the worker stops.
const ShutdownTimeout = 5 * time.Second

// State is where a Worker is in its connect, consume, teardown cycle.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = [...]string{
	StateStopped:  "Stopped",
	StateStarting: "Starting",
	StateRunning:  "Running",
	StateStopping: "Stopping",
	StateCrashed:  "Crashed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// workerTransitions lists the moves Worker.Run makes. Starting may go
// straight to Stopping when the run is cancelled mid-handshake; a failed
// handshake or subscribe crashes from Starting. Lost connections pass
// through Stopping so handlers are drained before Crashed is reported.
var workerTransitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// EventEmitter is told about every accepted state change.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle guards a Worker's State, holds the cancel func of the current
// run and counts in-flight subscription handlers.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	cancel  context.CancelFunc
	emitter EventEmitter
	logger  log.Logger

	handlers sync.WaitGroup
}

// NewLifecycle returns a Lifecycle in StateStopped. emitter may be nil.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:   StateStopped,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to next. Asking to start a worker that has not
// finished its previous run yields ErrAlreadyRunning; any other move not
// in the transition table yields a wrapped ErrNotRunning.
func (l *Lifecycle) TransitionTo(next State, reason string) error {
	l.mu.Lock()
	prev := l.state
	if !slices.Contains(workerTransitions[prev], next) {
		l.mu.Unlock()
		if next == StateStarting {
			return domain.ErrAlreadyRunning
		}
		return fmt.Errorf("%w: cannot move from %s to %s", domain.ErrNotRunning, prev, next)
	}
	l.state = next
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnStateChange(prev, next, reason)
	}
	l.logger.Info("worker state",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)
	return nil
}

// SetCancel records the cancel func of the current run.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
}

// Cancel stops the current run, if any.
func (l *Lifecycle) Cancel() {
	l.mu.RLock()
	cancel := l.cancel
	l.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// AddWorker counts one launched subscription handler.
func (l *Lifecycle) AddWorker() { l.handlers.Add(1) }

// WorkerDone marks a handler counted by AddWorker as returned.
func (l *Lifecycle) WorkerDone() { l.handlers.Done() }

// WaitWithTimeout blocks until every counted handler has returned or
// timeout elapses. On timeout it returns ErrShutdownTimeout and the
// stragglers are left to finish on their own.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	drained := make(chan struct{})
	go func() {
		l.handlers.Wait()
		close(drained)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-drained:
		return nil
	case <-timer.C:
		l.logger.Warn("handlers still running after shutdown grace, abandoning",
			log.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
