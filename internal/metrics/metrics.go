// Package metrics defines the Prometheus collectors Fitted exports on /metrics.
//
// Collectors are registered on a per-instance registry rather than the global
// default, so tests can build as many Metrics as they like.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing,
// which keeps services usable in tests without wiring Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PostsCreatedTotal   prometheus.Counter
	FollowTogglesTotal  *prometheus.CounterVec
	LiveClients         prometheus.Gauge
	LiveEventsDropped   prometheus.Counter
	WeatherCacheTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitted_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fitted_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		PostsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "fitted_posts_created_total",
			Help: "Posts successfully created",
		}),
		FollowTogglesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitted_follow_toggles_total",
				Help: "Follow toggles by resulting direction",
			},
			[]string{"direction"},
		),
		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitted_live_clients",
			Help: "Connected live-channel clients",
		}),
		LiveEventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "fitted_live_events_dropped_total",
			Help: "Live events dropped because a client's queue was full",
		}),
		WeatherCacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitted_weather_cache_total",
				Help: "Weather lookups by cache result",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) PostCreated() {
	if m == nil {
		return
	}
	m.PostsCreatedTotal.Inc()
}

func (m *Metrics) FollowToggled(following bool) {
	if m == nil {
		return
	}
	direction := "unfollow"
	if following {
		direction = "follow"
	}
	m.FollowTogglesTotal.WithLabelValues(direction).Inc()
}

func (m *Metrics) LiveClientConnected() {
	if m == nil {
		return
	}
	m.LiveClients.Inc()
}

func (m *Metrics) LiveClientDisconnected() {
	if m == nil {
		return
	}
	m.LiveClients.Dec()
}

func (m *Metrics) LiveEventDropped() {
	if m == nil {
		return
	}
	m.LiveEventsDropped.Inc()
}

// WeatherLookup records a cache "hit" or "miss".
func (m *Metrics) WeatherLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.WeatherCacheTotal.WithLabelValues(result).Inc()
}
