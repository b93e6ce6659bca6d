package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names.
const (
	MetricNameGenerationsTotal     = "forge_generations_total"
	MetricNameDiceTotal            = "forge_dice_total"
	MetricNameHTTPRequestsTotal    = "forge_http_requests_total"
	MetricNameHTTPRequestDuration  = "forge_http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "forge_http_requests_in_flight"
)

// Metric help text.
const (
	HelpTextGenerationsTotal     = "Total number of generation operations by kind and outcome"
	HelpTextDiceTotal            = "Distribution of rolled dice totals"
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"
)

// Label names.
const (
	LabelKind    = "kind"
	LabelOutcome = "outcome"
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelStatus  = "status"
)

// Generation kinds.
const (
	KindDice      = "dice"
	KindTable     = "table"
	KindName      = "name"
	KindEncounter = "encounter"
	KindGenerator = "generator"
)

// Outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// HTTPLatencyBuckets defines the histogram buckets for HTTP request duration.
var HTTPLatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// DiceTotalBuckets spans single dice up to large pools.
var DiceTotalBuckets = []float64{1, 2, 4, 6, 8, 10, 12, 20, 30, 50, 100, 250, 1000}

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameGenerationsTotal,
			Help: HelpTextGenerationsTotal,
		},
		[]string{LabelKind, LabelOutcome},
	)

	DiceTotal = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameDiceTotal,
			Help:    HelpTextDiceTotal,
			Buckets: DiceTotalBuckets,
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelRoute, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// RecordGeneration counts one operation of kind, labelled by whether err is nil.
func RecordGeneration(kind string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	GenerationsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveDiceTotal records a rolled total.
func ObserveDiceTotal(total int) {
	DiceTotal.Observe(float64(total))
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware collects request count, latency and in-flight metrics. The
// route label is the chi route pattern so path parameters do not explode
// label cardinality.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
