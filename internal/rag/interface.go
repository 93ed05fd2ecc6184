// Package rag defines the core types and component interfaces for the
// retrieval-augmented generation pipeline: embedding, vector indexing,
// document storage, result caching, generation, and metrics. Concrete
// implementations live in sibling packages; the orchestrator in this package
// composes them and never depends on a specific backend.
package rag

import (
	"context"
	"time"
)

// Document is the canonical stored record for a unit of ingested knowledge.
type Document struct {
	// ID is the unique identifier ("doc_" + content hash unless assigned).
	ID string `json:"id"`

	// Title is the human-readable document title.
	Title string `json:"title"`

	// Content is the raw text content.
	Content string `json:"content"`

	// URL is the origin URI of the document, if any.
	URL string `json:"url,omitempty"`

	// Metadata holds caller-supplied key-value pairs. Values are strings,
	// numbers, booleans, or one-level nested maps of those.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is the ingestion timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult is one retrieval match returned to callers. Content is
// truncated to a snippet; the full text stays in the document store.
type SearchResult struct {
	// ID is the matched document's identifier.
	ID string `json:"id"`

	// Title is the matched document's title.
	Title string `json:"title"`

	// Snippet is the leading content excerpt, truncated with an ellipsis.
	Snippet string `json:"snippet"`

	// URL is the document origin, if any.
	URL string `json:"url,omitempty"`

	// Score is the cosine similarity score for this match.
	Score float32 `json:"score"`

	// Metadata is the document's stored metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Hit is a raw vector index match: an id and its similarity score.
// Resolution to documents happens in the orchestrator.
type Hit struct {
	// ID is the indexed document id.
	ID string

	// Score is the cosine similarity in [-1, 1].
	Score float32
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice: same order, same count.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores embeddings and answers nearest-neighbour queries.
// Each instance has a fixed vector dimension; inserting a vector of any other
// dimension is a configuration error. Implementations must be safe to call
// from multiple goroutines.
type VectorIndex interface {
	// Insert adds or replaces the vector for the given id.
	Insert(ctx context.Context, id string, vec []float32) error

	// Remove deletes the vector for the given id. Removing an absent id is
	// not an error.
	Remove(ctx context.Context, id string) error

	// Query returns up to k hits ordered by descending similarity.
	// Ties are broken by insertion order, earlier first.
	Query(ctx context.Context, vec []float32, k int) ([]Hit, error)

	// Close releases any resources held by the index.
	Close() error
}

// DocumentStore persists canonical document records.
// Implementations must be safe to call from multiple goroutines.
type DocumentStore interface {
	// Put stores doc under doc.ID, overwriting any existing record.
	// The returned bool reports whether the document was new.
	Put(ctx context.Context, doc Document) (bool, error)

	// Get returns the document for id. The bool reports whether it exists.
	Get(ctx context.Context, id string) (Document, bool, error)

	// List returns all documents in insertion order.
	List(ctx context.Context) ([]Document, error)

	// Remove deletes the document for id. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// ResultCache is a TTL cache for completed request results. Entries past
// their TTL read as misses. Writes replace whole values, last write wins.
// Implementations must be safe to call from multiple goroutines.
type ResultCache interface {
	// Get returns the cached value for key, or false if absent or expired.
	Get(key string) (any, bool)

	// Set stores value under key with the given lifetime.
	Set(key string, value any, ttl time.Duration)
}

// Generation is the result of a completed LLM call.
type Generation struct {
	// Text is the generated content.
	Text string

	// TokensUsed is the total token count reported by the provider,
	// or an estimate when the provider reports none.
	TokensUsed int
}

// Generator produces text from a fully composed prompt.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Complete sends the prompt to the backing model and returns the
	// generation. Errors carry a reason code (see GenerationError).
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (Generation, error)
}

// MetricsRecorder aggregates request observations. Recording never fails
// and never blocks the request path.
type MetricsRecorder interface {
	// RecordRequest records one completed request observation.
	RecordRequest(endpoint string, d time.Duration, success, cacheHit bool, tokensUsed int)

	// Snapshot returns a consistent point-in-time view of the aggregates.
	Snapshot() MetricsSnapshot
}

// EndpointStats is the per-endpoint slice of the metrics snapshot.
type EndpointStats struct {
	// Requests is the total request count for the endpoint.
	Requests int64 `json:"requests"`

	// Errors is the failed request count for the endpoint.
	Errors int64 `json:"errors"`
}

// MetricsSnapshot is a point-in-time view of the service aggregates.
type MetricsSnapshot struct {
	// TotalRequests is the number of recorded requests.
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests is the number of requests that completed without error.
	SuccessfulRequests int64 `json:"successful_requests"`

	// FailedRequests is the number of requests that returned an error.
	FailedRequests int64 `json:"failed_requests"`

	// SuccessRate is successful/total in [0, 1]; 0 when no requests recorded.
	SuccessRate float64 `json:"success_rate"`

	// CacheHitRate is cache hits over cacheable requests in [0, 1].
	CacheHitRate float64 `json:"cache_hit_rate"`

	// AverageResponseTimeMs is the mean latency over the recent window.
	AverageResponseTimeMs float64 `json:"average_response_time_ms"`

	// ResponseTimeBuckets is the latency distribution over the recent window,
	// keyed "0-50ms", "50-100ms", "100-200ms", "200-500ms", "500ms+".
	ResponseTimeBuckets map[string]int64 `json:"response_time_buckets"`

	// ServiceBreakdown is the per-endpoint request and error counts.
	ServiceBreakdown map[string]EndpointStats `json:"service_breakdown"`

	// TotalTokensUsed is the cumulative LLM token consumption.
	TotalTokensUsed int64 `json:"total_tokens_used"`

	// UptimeSeconds is the time since the aggregator was created.
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// CachedSearch is the cache payload for a completed search request.
// The variant tag is implicit in the fingerprint namespace; the distinct
// type guards against a namespace mixup deserializing as the wrong shape.
type CachedSearch struct {
	// Results is the ordered result list as originally returned.
	Results []SearchResult
}

// CachedGenerate is the cache payload for a completed generation request.
type CachedGenerate struct {
	// Text is the generated content.
	Text string

	// Sources are the documents that grounded the generation.
	Sources []SourceRef

	// TokensUsed is the provider-reported token consumption.
	TokensUsed int
}

// SourceRef identifies a document that contributed context to a generation.
type SourceRef struct {
	// ID is the document id.
	ID string `json:"id"`

	// Title is the document title.
	Title string `json:"title"`

	// Snippet is the leading content excerpt of the source document.
	Snippet string `json:"snippet"`

	// URL is the document origin, if any.
	URL string `json:"url,omitempty"`

	// Score is the retrieval similarity for this source.
	Score float32 `json:"score"`
}
