// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agendacal/internal/model"
)

const namespace = "agendacal"

// Metrics owns a private registry so tests can create as many as they need.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	scheduled        *prometheus.CounterVec
	rejected         prometheus.Counter
	scheduleDuration prometheus.Histogram
	icsFetches       *prometheus.CounterVec
	refreshes        *prometheus.CounterVec
	lastRefresh      prometheus.Gauge
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_events_total",
			Help:      "Events placed into a bucket, by bucket.",
		}, []string{"bucket"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_events_total",
			Help:      "Malformed event records skipped during scheduling.",
		}),
		scheduleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_duration_seconds",
			Help:      "Time spent normalizing and scheduling one request.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		icsFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ics_fetches_total",
			Help:      "ICS fetch attempts, by source and result.",
		}, []string{"source", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agenda_refreshes_total",
			Help:      "Agenda refresh attempts, by result.",
		}, []string{"result"}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agenda_last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful agenda refresh.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status.",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	registry.MustRegister(
		m.scheduled, m.rejected, m.scheduleDuration, m.icsFetches,
		m.refreshes, m.lastRefresh, m.requests, m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSchedule records one scheduling pass.
func (m *Metrics) ObserveSchedule(b model.Buckets, rejected int, took time.Duration) {
	if m == nil {
		return
	}
	m.scheduled.WithLabelValues("before").Add(float64(len(b.Before)))
	m.scheduled.WithLabelValues("after").Add(float64(len(b.After)))
	m.rejected.Add(float64(rejected))
	m.scheduleDuration.Observe(took.Seconds())
}

// ObserveFetch records one ICS fetch outcome.
func (m *Metrics) ObserveFetch(source, result string) {
	if m == nil {
		return
	}
	m.icsFetches.WithLabelValues(source, result).Inc()
}

// ObserveRefresh records one agenda refresh attempt.
func (m *Metrics) ObserveRefresh(at time.Time, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.refreshes.WithLabelValues("error").Inc()
		return
	}
	m.refreshes.WithLabelValues("ok").Inc()
	m.lastRefresh.Set(float64(at.Unix()))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(took.Seconds())
}
