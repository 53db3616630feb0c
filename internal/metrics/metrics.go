// Package metrics exposes pit's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pit"

// Failure stages of the document pipeline.
const (
	StageFetch     = "fetch"
	StageTransform = "transform"
	StageWrite     = "write"
)

// Metrics holds the collectors for the broker client, pipeline and index manager.
type Metrics struct {
	framesReceived    *prometheus.CounterVec // By command (heartbeat for empty)
	handlersInFlight  prometheus.Gauge
	heartbeatTimeouts prometheus.Counter

	notifications    *prometheus.CounterVec // By outcome: accepted, filtered
	documentsIndexed prometheus.Counter
	documentFailures *prometheus.CounterVec // By stage
	documentDuration prometheus.Histogram

	versionsCreated prometheus.Counter
	aliasSwaps      *prometheus.CounterVec // By status: ok, error
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stomp",
			Name:      "frames_received_total",
			Help:      "Frames received from the broker, heartbeats included.",
		}, []string{"command"}),
		handlersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stomp",
			Name:      "handlers_in_flight",
			Help:      "Subscription handlers currently running.",
		}),
		heartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stomp",
			Name:      "heartbeat_timeouts_total",
			Help:      "Connections torn down because the broker went silent.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "notifications_total",
			Help:      "Notifications seen by the pipeline.",
		}, []string{"outcome"}),
		documentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "documents_indexed_total",
			Help:      "Documents written to the index.",
		}),
		documentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "document_failures_total",
			Help:      "Documents skipped because a pipeline stage failed.",
		}, []string{"stage"}),
		documentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "Time to fetch, build and write one document.",
			Buckets:   prometheus.DefBuckets,
		}),
		versionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "versions_created_total",
			Help:      "Physical index versions created.",
		}),
		aliasSwaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "alias_swaps_total",
			Help:      "Alias cutovers attempted.",
		}, []string{"status"}),
	}

	collectors := []prometheus.Collector{
		m.framesReceived, m.handlersInFlight, m.heartbeatTimeouts,
		m.notifications, m.documentsIndexed, m.documentFailures, m.documentDuration,
		m.versionsCreated, m.aliasSwaps,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FrameReceived counts one inbound frame.
func (m *Metrics) FrameReceived(command string) {
	if m == nil {
		return
	}
	if command == "" {
		command = "heartbeat"
	}
	m.framesReceived.WithLabelValues(command).Inc()
}

// HandlerStarted and HandlerDone track running subscription handlers.
func (m *Metrics) HandlerStarted() {
	if m == nil {
		return
	}
	m.handlersInFlight.Inc()
}

func (m *Metrics) HandlerDone() {
	if m == nil {
		return
	}
	m.handlersInFlight.Dec()
}

// HeartbeatTimeout counts one liveness failure.
func (m *Metrics) HeartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Inc()
}

// Notification counts a notification as accepted or filtered.
func (m *Metrics) Notification(accepted bool) {
	if m == nil {
		return
	}
	outcome := "filtered"
	if accepted {
		outcome = "accepted"
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// DocumentIndexed records a successful document write.
func (m *Metrics) DocumentIndexed(d time.Duration) {
	if m == nil {
		return
	}
	m.documentsIndexed.Inc()
	m.documentDuration.Observe(d.Seconds())
}

// DocumentFailed records a document skipped at stage.
func (m *Metrics) DocumentFailed(stage string) {
	if m == nil {
		return
	}
	m.documentFailures.WithLabelValues(stage).Inc()
}

// VersionCreated counts a new physical index.
func (m *Metrics) VersionCreated() {
	if m == nil {
		return
	}
	m.versionsCreated.Inc()
}

// AliasSwap records the outcome of a cutover.
func (m *Metrics) AliasSwap(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.aliasSwaps.WithLabelValues(status).Inc()
}
