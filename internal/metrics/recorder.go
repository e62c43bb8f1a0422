// Package metrics exposes Prometheus counters for the update stream.
//
// All collectors live on a private registry so that several recorders (one
// per test, or a client and a dev server in the same process) never collide
// on the global default registry. Every method is safe on a nil *Recorder,
// which lets callers run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hotpatch"

// Recorder tracks update-stream metrics.
type Recorder struct {
	registry *prometheus.Registry

	frames              *prometheus.CounterVec
	messages            *prometheus.CounterVec
	merges              prometheus.Counter
	flushes             prometheus.Counter
	flushedUpdates      prometheus.Counter
	invariantViolations prometheus.Counter
	listenerFailures    prometheus.Counter
	resets              prometheus.Counter
	subscriptions       prometheus.Gauge
	controlMessages     *prometheus.CounterVec
	reconnects          prometheus.Counter

	published   *prometheus.CounterVec
	connections prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry. Go runtime and
// process collectors are registered alongside.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Socket frames received, by shape (single or batch).",
		}, []string{"shape"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_handled_total",
			Help:      "Server messages handled, by message type.",
		}, []string{"type"}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_merged_total",
			Help:      "Partial updates merged into an already pending aggregate.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Pending-table flushes that delivered at least one aggregate.",
		}),
		flushedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregates_delivered_total",
			Help:      "Aggregated updates delivered by flushes.",
		}),
		invariantViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Update pairs that could not be merged.",
		}),
		listenerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Listeners that returned an error or panicked.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Full state resets.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Resources with at least one listener.",
		}),
		controlMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_messages_sent_total",
			Help:      "Subscribe and unsubscribe messages sent, by type.",
		}, []string{"type"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connection attempts after the first one.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devserver",
			Name:      "messages_published_total",
			Help:      "Messages published to subscribed connections, by type.",
		}, []string{"type"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "devserver",
			Name:      "connections",
			Help:      "Open update sockets.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.frames, r.messages, r.merges, r.flushes, r.flushedUpdates,
		r.invariantViolations, r.listenerFailures, r.resets, r.subscriptions,
		r.controlMessages, r.reconnects, r.published, r.connections,
	)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) FrameReceived(batch bool) {
	if r == nil {
		return
	}
	shape := "single"
	if batch {
		shape = "batch"
	}
	r.frames.WithLabelValues(shape).Inc()
}

func (r *Recorder) MessageHandled(msgType string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(msgType).Inc()
}

func (r *Recorder) UpdateMerged() {
	if r == nil {
		return
	}
	r.merges.Inc()
}

// Flushed records one flush delivering n aggregates.
func (r *Recorder) Flushed(n int) {
	if r == nil || n == 0 {
		return
	}
	r.flushes.Inc()
	r.flushedUpdates.Add(float64(n))
}

func (r *Recorder) InvariantViolation() {
	if r == nil {
		return
	}
	r.invariantViolations.Inc()
}

func (r *Recorder) ListenerFailure() {
	if r == nil {
		return
	}
	r.listenerFailures.Inc()
}

func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.resets.Inc()
}

func (r *Recorder) SetSubscriptions(n int) {
	if r == nil {
		return
	}
	r.subscriptions.Set(float64(n))
}

func (r *Recorder) ControlSent(msgType string) {
	if r == nil {
		return
	}
	r.controlMessages.WithLabelValues(msgType).Inc()
}

func (r *Recorder) Reconnect() {
	if r == nil {
		return
	}
	r.reconnects.Inc()
}

func (r *Recorder) Published(msgType string) {
	if r == nil {
		return
	}
	r.published.WithLabelValues(msgType).Inc()
}

func (r *Recorder) ConnectionOpened() {
	if r == nil {
		return
	}
	r.connections.Inc()
}

func (r *Recorder) ConnectionClosed() {
	if r == nil {
		return
	}
	r.connections.Dec()
}
