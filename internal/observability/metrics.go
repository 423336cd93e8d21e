package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "andon"

// Metrics holds the board's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CallsCreated       *prometheus.CounterVec
	CallTransitions    *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	Notifications      *prometheus.CounterVec
	EventsDropped      prometheus.Counter
	HTTPRequests       *prometheus.HistogramVec
	RateLimited        *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CallsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_created_total",
			Help:      "createCall outcomes by result",
		}, []string{"outcome"}),

		CallTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_total",
			Help:      "Respond and resolve attempts by result",
		}, []string{"action", "result"}),

		ResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_downtime_seconds",
			Help:      "Time from call creation to resolution",
			Buckets:   prometheus.ExponentialBuckets(60, 2, 10), // 1 minute to ~8.5 hours
		}),

		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Telegram deliveries by result",
		}, []string{"result"}),

		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_dropped_total",
			Help:      "Call events discarded because the write buffer was full",
		}),

		HTTPRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the public endpoint limiter",
		}, []string{"scope"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CallsCreated,
		m.CallTransitions,
		m.ResolutionDuration,
		m.Notifications,
		m.EventsDropped,
		m.HTTPRequests,
		m.RateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CallCreated(outcome string) {
	if m == nil {
		return
	}
	m.CallsCreated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(action, result string) {
	if m == nil {
		return
	}
	m.CallTransitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) CallResolved(downtime time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionDuration.Observe(downtime.Seconds())
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimit(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}
