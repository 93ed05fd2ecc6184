package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestAggregator builds an Aggregator against an isolated registry so
// tests never collide on the global default registry.
func newTestAggregator() (*Aggregator, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

// TestSnapshot_Counters verifies total/success/failure accounting and rates.
func TestSnapshot_Counters(t *testing.T) {
	t.Parallel()

	a, _ := newTestAggregator()

	a.RecordRequest("search", 10*time.Millisecond, true, false, 0)
	a.RecordRequest("search", 10*time.Millisecond, true, true, 0)
	a.RecordRequest("generate", 300*time.Millisecond, true, false, 42)
	a.RecordRequest("generate", 20*time.Millisecond, false, false, 0)
	a.RecordRequest("ingest", 5*time.Millisecond, true, false, 0)

	snap := a.Snapshot()

	if snap.TotalRequests != 5 || snap.SuccessfulRequests != 4 || snap.FailedRequests != 1 {
		t.Errorf("counters wrong: %+v", snap)
	}
	if snap.SuccessRate != 0.8 {
		t.Errorf("success rate: expected 0.8, got %f", snap.SuccessRate)
	}
	if snap.TotalTokensUsed != 42 {
		t.Errorf("tokens: expected 42, got %d", snap.TotalTokensUsed)
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("uptime negative: %f", snap.UptimeSeconds)
	}
}

// TestSnapshot_CacheHitRate verifies that the hit rate counts only cacheable
// endpoints: ingest requests never enter the denominator.
func TestSnapshot_CacheHitRate(t *testing.T) {
	t.Parallel()

	a, _ := newTestAggregator()

	a.RecordRequest("search", time.Millisecond, true, true, 0)
	a.RecordRequest("search", time.Millisecond, true, false, 0)
	a.RecordRequest("generate", time.Millisecond, true, true, 0)
	a.RecordRequest("generate", time.Millisecond, true, false, 0)
	a.RecordRequest("ingest", time.Millisecond, true, false, 0)
	a.RecordRequest("ingest", time.Millisecond, true, false, 0)

	snap := a.Snapshot()
	if snap.CacheHitRate != 0.5 {
		t.Errorf("cache hit rate: expected 0.5 over 4 lookups, got %f", snap.CacheHitRate)
	}
}

// TestSnapshot_Buckets verifies the latency distribution labels.
func TestSnapshot_Buckets(t *testing.T) {
	t.Parallel()

	a, _ := newTestAggregator()

	a.RecordRequest("search", 10*time.Millisecond, true, false, 0)
	a.RecordRequest("search", 75*time.Millisecond, true, false, 0)
	a.RecordRequest("search", 150*time.Millisecond, true, false, 0)
	a.RecordRequest("search", 350*time.Millisecond, true, false, 0)
	a.RecordRequest("search", 900*time.Millisecond, true, false, 0)

	snap := a.Snapshot()

	want := map[string]int64{
		"0-50ms":    1,
		"50-100ms":  1,
		"100-200ms": 1,
		"200-500ms": 1,
		"500ms+":    1,
	}
	for label, n := range want {
		if snap.ResponseTimeBuckets[label] != n {
			t.Errorf("bucket %s: expected %d, got %d", label, n, snap.ResponseTimeBuckets[label])
		}
	}

	if snap.AverageResponseTimeMs != (10+75+150+350+900)/5.0 {
		t.Errorf("average wrong: %f", snap.AverageResponseTimeMs)
	}
}

// TestSnapshot_ServiceBreakdown verifies per-endpoint request/error counts.
func TestSnapshot_ServiceBreakdown(t *testing.T) {
	t.Parallel()

	a, _ := newTestAggregator()

	a.RecordRequest("search", time.Millisecond, true, false, 0)
	a.RecordRequest("search", time.Millisecond, false, false, 0)
	a.RecordRequest("generate", time.Millisecond, true, false, 0)

	snap := a.Snapshot()

	search := snap.ServiceBreakdown["search"]
	if search.Requests != 2 || search.Errors != 1 {
		t.Errorf("search breakdown wrong: %+v", search)
	}
	gen := snap.ServiceBreakdown["generate"]
	if gen.Requests != 1 || gen.Errors != 0 {
		t.Errorf("generate breakdown wrong: %+v", gen)
	}
}

// TestPrometheusMirrors verifies that observations reach the registry with
// the expected label values.
func TestPrometheusMirrors(t *testing.T) {
	t.Parallel()

	a, _ := newTestAggregator()

	a.RecordRequest("search", time.Millisecond, true, false, 0)
	a.RecordRequest("search", time.Millisecond, false, false, 0)
	a.RecordRequest("generate", time.Millisecond, true, true, 50)

	if got := testutil.ToFloat64(a.promRequests.WithLabelValues("search", "ok")); got != 1 {
		t.Errorf("requests_total{search,ok}: expected 1, got %f", got)
	}
	if got := testutil.ToFloat64(a.promRequests.WithLabelValues("search", "error")); got != 1 {
		t.Errorf("requests_total{search,error}: expected 1, got %f", got)
	}
	if got := testutil.ToFloat64(a.promCacheOps.WithLabelValues("hit")); got != 1 {
		t.Errorf("cache hit counter: expected 1, got %f", got)
	}
	if got := testutil.ToFloat64(a.promTokens); got != 50 {
		t.Errorf("tokens counter: expected 50, got %f", got)
	}
}

// TestWindowAgesOut verifies that the latency window is bounded: old
// observations fall out once the ring wraps.
func TestWindowAgesOut(t *testing.T) {
	t.Parallel()

	a, _ := newTestAggregator()

	// One slow outlier, then enough fast requests to push it out.
	a.RecordRequest("search", time.Second, true, false, 0)
	for i := 0; i < latencyWindow; i++ {
		a.RecordRequest("search", time.Millisecond, true, false, 0)
	}

	snap := a.Snapshot()
	if snap.ResponseTimeBuckets["500ms+"] != 0 {
		t.Errorf("outlier should have aged out of the window: %+v", snap.ResponseTimeBuckets)
	}
}
