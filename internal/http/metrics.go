package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed on /metrics. Each server
// owns its registry so tests can build servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Mutations       *prometheus.CounterVec
	RateLimited     prometheus.Counter
	Suspicious      prometheus.Counter
}

// CacheStats is read on every scrape.
type CacheStats interface {
	Size() int
	LoadedAt() time.Time
}

// NewMetrics registers the ledger collectors plus Go and process collectors.
func NewMetrics(cache CacheStats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetledger_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sheetledger_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),

		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetledger_mutations_total",
				Help: "Store mutations by action and result",
			},
			[]string{"action", "result"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sheetledger_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter",
			},
		),

		Suspicious: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sheetledger_suspicious_requests_total",
				Help: "Requests rejected as scanner probes",
			},
		),
	}

	m.registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.Mutations,
		m.RateLimited,
		m.Suspicious,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cache != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "sheetledger_cached_records",
				Help: "Number of records currently held in the cache",
			}, func() float64 { return float64(cache.Size()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "sheetledger_cache_loaded_timestamp_seconds",
				Help: "Unix time of the last successful cache load, 0 before the first",
			}, func() float64 {
				t := cache.LoadedAt()
				if t.IsZero() {
					return 0
				}
				return float64(t.Unix())
			}),
		)
	}
	return m
}

// ObserveRequest is the trace middleware observer.
func (m *Metrics) ObserveRequest(r *http.Request, status int, elapsed time.Duration) {
	route := routeLabel(r.URL.Path)
	m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveMutation counts one store mutation.
func (m *Metrics) ObserveMutation(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Mutations.WithLabelValues(action, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// routeLabel keeps label cardinality bounded: unknown paths collapse into
// "other".
func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	if strings.HasPrefix(path, "/static/") {
		return "/static/"
	}
	return "other"
}
