package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the offer cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationLookup records offer cache reads.
	CacheOperationLookup CacheOperation = "lookup"
	// CacheOperationStore records offer cache write attempts.
	CacheOperationStore CacheOperation = "store"
)

// CacheOutcome captures the result of an offer cache operation.
type CacheOutcome string

const (
	// CacheOutcomeHit indicates a fresh record was found (offer or negative).
	CacheOutcomeHit CacheOutcome = "hit"
	// CacheOutcomeMiss indicates no record was present.
	CacheOutcomeMiss CacheOutcome = "miss"
	// CacheOutcomeExpired indicates a record was present but stale and purged.
	CacheOutcomeExpired CacheOutcome = "expired"
	// CacheOutcomeStored indicates a record was persisted.
	CacheOutcomeStored CacheOutcome = "stored"
	// CacheOutcomeError indicates the store operation failed.
	CacheOutcomeError CacheOutcome = "error"
)

// LookupSource distinguishes where a price lookup was answered.
type LookupSource string

const (
	// LookupSourceCache marks lookups answered without a network call.
	LookupSourceCache LookupSource = "cache"
	// LookupSourceNetwork marks lookups that reached the marketplace.
	LookupSourceNetwork LookupSource = "network"
)

// LookupResult captures what a price lookup produced.
type LookupResult string

const (
	// LookupResultOffer means a priced offer was returned.
	LookupResultOffer LookupResult = "offer"
	// LookupResultNone means the marketplace has no match (negative result).
	LookupResultNone LookupResult = "none"
	// LookupResultError means the lookup failed in transit.
	LookupResultError LookupResult = "error"
)

// BadgeOutcome captures what happened to a badge injection attempt.
type BadgeOutcome string

const (
	// BadgeInjected means a badge subtree was inserted.
	BadgeInjected BadgeOutcome = "injected"
	// BadgeDuplicate means the container already carried a badge.
	BadgeDuplicate BadgeOutcome = "duplicate"
	// BadgeNoAnchor means no insertion point matched any strategy.
	BadgeNoAnchor BadgeOutcome = "no_anchor"
)

// Recorder publishes Prometheus metrics for scan and lookup activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	lookups       *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec

	badges *prometheus.CounterVec
	scans  prometheus.Counter
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopglance",
		Subsystem: "lookup",
		Name:      "requests_total",
		Help:      "Price lookups resolved, by answer source and result.",
	}, []string{"source", "result"})

	lookupLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopglance",
		Subsystem: "lookup",
		Name:      "duration_seconds",
		Help:      "Latency distribution for price lookups.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"source"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopglance",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Offer cache operations executed by the pipeline.",
	}, []string{"operation", "outcome"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopglance",
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for offer cache operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "outcome"})

	badges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopglance",
		Subsystem: "badge",
		Name:      "injections_total",
		Help:      "Badge injection attempts, by outcome.",
	}, []string{"outcome"})

	scans := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shopglance",
		Subsystem: "scan",
		Name:      "passes_total",
		Help:      "Full document scan passes executed.",
	})

	reg.MustRegister(lookups, lookupLatency, cacheOperations, cacheLatency, badges, scans)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		lookups:         lookups,
		lookupLatency:   lookupLatency,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
		badges:          badges,
		scans:           scans,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveLookup records a resolved price lookup.
func (r *Recorder) ObserveLookup(source LookupSource, result LookupResult, duration time.Duration) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(string(source), string(result)).Inc()
	r.lookupLatency.WithLabelValues(string(source)).Observe(duration.Seconds())
}

// ObserveCacheOperation records an offer cache read or write.
func (r *Recorder) ObserveCacheOperation(op CacheOperation, outcome CacheOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	if op == "" {
		op = CacheOperationLookup
	}
	if outcome == "" {
		outcome = CacheOutcomeError
	}
	r.cacheOperations.WithLabelValues(string(op), string(outcome)).Inc()
	r.cacheLatency.WithLabelValues(string(op), string(outcome)).Observe(duration.Seconds())
}

// ObserveBadge records a badge injection attempt.
func (r *Recorder) ObserveBadge(outcome BadgeOutcome) {
	if r == nil {
		return
	}
	r.badges.WithLabelValues(string(outcome)).Inc()
}

// ObserveScan records one full scan pass over a document.
func (r *Recorder) ObserveScan() {
	if r == nil {
		return
	}
	r.scans.Inc()
}
