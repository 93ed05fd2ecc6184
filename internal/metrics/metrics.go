// Package metrics implements the request aggregator behind /api/metrics.
// It keeps its own readable counters and latency window for the JSON
// snapshot, and mirrors the same observations into a Prometheus registry
// for /metrics scrapes. Recording never fails and never blocks the caller.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ctxgen/ragserve-go/internal/rag"
)

// latencyWindow is the number of recent observations kept for the average
// and bucket distribution. Old observations age out as new ones arrive.
const latencyWindow = 1000

// bucketLabels are the snapshot's latency distribution keys, in order.
var bucketLabels = []string{"0-50ms", "50-100ms", "100-200ms", "200-500ms", "500ms+"}

// bucketUpperMs holds each bucket's exclusive upper bound in milliseconds;
// the last bucket is unbounded.
var bucketUpperMs = []float64{50, 100, 200, 500}

// Aggregator implements rag.MetricsRecorder. Safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	// total, successful, failed count recorded requests.
	total      int64
	successful int64
	failed     int64

	// cacheHits and cacheLookups feed the cache hit rate. Every search and
	// generate request is a lookup; ingest is not cacheable.
	cacheHits    int64
	cacheLookups int64

	// tokensUsed accumulates provider-reported token consumption.
	tokensUsed int64

	// perEndpoint holds request and error counts keyed by endpoint name.
	perEndpoint map[string]*rag.EndpointStats

	// window is a ring buffer of recent latencies in milliseconds.
	window [latencyWindow]float64
	// windowLen is the number of valid entries in window.
	windowLen int
	// windowNext is the next write position in window.
	windowNext int

	// started anchors uptime reporting.
	started time.Time

	// Prometheus mirrors.
	promRequests *prometheus.CounterVec
	promDuration *prometheus.HistogramVec
	promCacheOps *prometheus.CounterVec
	promTokens   prometheus.Counter
}

// New constructs an Aggregator registering its Prometheus mirrors against
// reg. promauto.With(reg) is used so that each call registers into the
// provided registry rather than the global default — this keeps unit tests
// hermetic.
func New(reg prometheus.Registerer) *Aggregator {
	factory := promauto.With(reg)

	return &Aggregator{
		perEndpoint: make(map[string]*rag.EndpointStats),
		started:     time.Now(),

		promRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragserve",
			Subsystem: "requests",
			Name:      "total",
			Help:      "Total pipeline requests, partitioned by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),

		promDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragserve",
			Subsystem: "requests",
			Name:      "duration_seconds",
			Help:      "Latency of pipeline requests.",
			Buckets:   []float64{.05, .1, .2, .5, 1, 2, 5, 10, 30},
		}, []string{"endpoint"}),

		promCacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragserve",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups, partitioned by outcome (hit/miss).",
		}, []string{"outcome"}),

		promTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragserve",
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Cumulative LLM tokens consumed by generation requests.",
		}),
	}
}

// RecordRequest records one completed request observation.
func (a *Aggregator) RecordRequest(endpoint string, d time.Duration, success, cacheHit bool, tokensUsed int) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	a.promRequests.WithLabelValues(endpoint, outcome).Inc()
	a.promDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if tokensUsed > 0 {
		a.promTokens.Add(float64(tokensUsed))
	}
	cacheable := endpoint == "search" || endpoint == "generate"
	if cacheable {
		if cacheHit {
			a.promCacheOps.WithLabelValues("hit").Inc()
		} else {
			a.promCacheOps.WithLabelValues("miss").Inc()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if success {
		a.successful++
	} else {
		a.failed++
	}
	if cacheable {
		a.cacheLookups++
		if cacheHit {
			a.cacheHits++
		}
	}
	a.tokensUsed += int64(tokensUsed)

	st := a.perEndpoint[endpoint]
	if st == nil {
		st = &rag.EndpointStats{}
		a.perEndpoint[endpoint] = st
	}
	st.Requests++
	if !success {
		st.Errors++
	}

	a.window[a.windowNext] = float64(d.Milliseconds())
	a.windowNext = (a.windowNext + 1) % latencyWindow
	if a.windowLen < latencyWindow {
		a.windowLen++
	}
}

// Snapshot returns a consistent point-in-time view of the aggregates.
func (a *Aggregator) Snapshot() rag.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := rag.MetricsSnapshot{
		TotalRequests:       a.total,
		SuccessfulRequests:  a.successful,
		FailedRequests:      a.failed,
		TotalTokensUsed:     a.tokensUsed,
		UptimeSeconds:       time.Since(a.started).Seconds(),
		ResponseTimeBuckets: make(map[string]int64, len(bucketLabels)),
		ServiceBreakdown:    make(map[string]rag.EndpointStats, len(a.perEndpoint)),
	}
	if a.total > 0 {
		snap.SuccessRate = float64(a.successful) / float64(a.total)
	}
	if a.cacheLookups > 0 {
		snap.CacheHitRate = float64(a.cacheHits) / float64(a.cacheLookups)
	}

	for _, label := range bucketLabels {
		snap.ResponseTimeBuckets[label] = 0
	}
	var sum float64
	for i := 0; i < a.windowLen; i++ {
		ms := a.window[i]
		sum += ms
		snap.ResponseTimeBuckets[bucketFor(ms)]++
	}
	if a.windowLen > 0 {
		snap.AverageResponseTimeMs = sum / float64(a.windowLen)
	}

	for endpoint, st := range a.perEndpoint {
		snap.ServiceBreakdown[endpoint] = *st
	}

	return snap
}

// bucketFor maps a latency in milliseconds to its distribution label.
func bucketFor(ms float64) string {
	for i, upper := range bucketUpperMs {
		if ms < upper {
			return bucketLabels[i]
		}
	}
	return bucketLabels[len(bucketLabels)-1]
}
