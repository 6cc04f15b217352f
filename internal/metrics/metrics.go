// ABOUTME: Prometheus collectors for dialog lifecycle, relay and delivery events
// ABOUTME: A nil *Metrics is valid and records nothing, so tests can skip wiring it

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "handoff"

// Relay directions.
const (
	DirectionToOperator = "to_operator"
	DirectionToUser     = "to_user"
)

// Metrics bundles the gateway's collectors.
type Metrics struct {
	created     prometheus.Counter
	accepted    prometheus.Counter
	closed      *prometheus.CounterVec
	relayed     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	openDialogs prometheus.GaugeFunc

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. openDialogs, when non-nil, backs a
// gauge evaluated at scrape time.
func New(reg *prometheus.Registry, openDialogs func() float64) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogs_created_total",
			Help:      "Dialogs opened by user handoff requests.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogs_accepted_total",
			Help:      "Dialogs claimed by an operator.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogs_closed_total",
			Help:      "Dialogs closed, by the party that closed them.",
		}, []string{"actor"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Dialog messages relayed between users and operators.",
		}, []string{"direction"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Messenger sends that failed, by message kind.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests received.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "API requests currently being handled.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.created, m.accepted, m.closed, m.relayed, m.failures,
		m.requests, m.duration, m.inFlight)

	if openDialogs != nil {
		m.openDialogs = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_dialogs",
			Help:      "Dialogs currently pending or active.",
		}, openDialogs)
		reg.MustRegister(m.openDialogs)
	}
	return m
}

// DialogCreated counts a new dialog.
func (m *Metrics) DialogCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}

// DialogAccepted counts an operator claiming a dialog.
func (m *Metrics) DialogAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

// DialogClosed counts a close by actor ("user", "operator", "admin").
func (m *Metrics) DialogClosed(actor string) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(actor).Inc()
}

// MessageRelayed counts a relayed dialog message.
func (m *Metrics) MessageRelayed(direction string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(direction).Inc()
}

// DeliveryFailed counts a failed send of the given kind.
func (m *Metrics) DeliveryFailed(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
