package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctxgen/ragserve-go/internal/budget"
	"github.com/ctxgen/ragserve-go/internal/logging"
)

const (
	// DefaultSearchLimit is the result count when a search request passes 0.
	DefaultSearchLimit = 10

	// MaxSearchLimit caps the per-request result count.
	MaxSearchLimit = 50

	// DefaultContextTopK is the fixed number of documents retrieved as
	// generation context, independent of any search limit.
	DefaultContextTopK = 4

	// DefaultSnippetLength is the search result snippet truncation length.
	DefaultSnippetLength = 500

	// DefaultMaxTokens is the generation token limit when the request passes 0.
	DefaultMaxTokens = 500

	// DefaultTemperature is the sampling temperature when the request passes 0.
	DefaultTemperature = 0.7

	// DefaultCacheTTL is the result cache lifetime when none is configured.
	DefaultCacheTTL = time.Hour
)

// IngestDocument is one document submitted for ingestion.
type IngestDocument struct {
	// ID optionally pins the document id. When empty the id is derived from
	// content and URL, which makes identical re-submissions idempotent.
	ID string `json:"id,omitempty"`

	// Title is the document title. Required.
	Title string `json:"title"`

	// Content is the document text. Required.
	Content string `json:"content"`

	// URL is the document origin, if any.
	URL string `json:"url,omitempty"`

	// Metadata holds caller-supplied key-value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IngestFailure records one document that could not be ingested.
type IngestFailure struct {
	// Index is the document's position in the submitted batch.
	Index int `json:"index"`

	// Title is the submitted title, for operator readability.
	Title string `json:"title,omitempty"`

	// Error describes why ingestion failed.
	Error string `json:"error"`
}

// IngestResult summarises a completed ingestion batch. A batch with failures
// still processes the remaining documents — partial success is reported, not
// collapsed into a single error.
type IngestResult struct {
	// Processed is the number of documents newly stored and indexed.
	Processed int `json:"processed"`

	// Deduplicated is the number of documents skipped as exact duplicates.
	Deduplicated int `json:"deduplicated"`

	// Failures lists documents that could not be ingested.
	Failures []IngestFailure `json:"failures,omitempty"`
}

// SearchResponse is the result of a search request.
type SearchResponse struct {
	// Query is the original query text.
	Query string `json:"query"`

	// Results is the ordered match list.
	Results []SearchResult `json:"results"`

	// Count is len(Results), kept explicit for API consumers.
	Count int `json:"count"`

	// Cached reports whether the response was served from the result cache.
	Cached bool `json:"cached"`

	// ResponseTimeMs is the server-side processing time for this request in
	// milliseconds, measured from request start on both fresh and cached paths.
	ResponseTimeMs float64 `json:"response_time_ms"`
}

// GenerateRequest is a generation request.
type GenerateRequest struct {
	// Query is the user's question or instruction. Required.
	Query string `json:"query"`

	// MaxTokens caps the response length. 0 selects DefaultMaxTokens.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature sets sampling temperature. 0 selects DefaultTemperature.
	Temperature float32 `json:"temperature,omitempty"`
}

// GenerateResponse is the result of a generation request.
type GenerateResponse struct {
	// Text is the generated content. Serialised as "content" on the wire.
	Text string `json:"content"`

	// Sources are the documents that grounded the generation, in retrieval
	// order. Empty when the corpus had no relevant documents.
	Sources []SourceRef `json:"sources"`

	// TokensUsed is the provider-reported token consumption.
	TokensUsed int `json:"tokens_used"`

	// Cached reports whether the response was served from the result cache.
	Cached bool `json:"cached"`

	// ResponseTimeMs is the server-side processing time for this request in
	// milliseconds, measured from request start on both fresh and cached paths.
	ResponseTimeMs float64 `json:"response_time_ms"`
}

// HealthStatus is the service health report.
type HealthStatus struct {
	// Status is "healthy" or "unhealthy". Unhealthy means the most recent
	// generation attempt failed upstream; it clears on the next success.
	Status string `json:"status"`

	// DocumentCount is the number of stored documents.
	DocumentCount int `json:"document_count"`

	// UptimeSeconds is the time since the orchestrator was created.
	UptimeSeconds float64 `json:"uptime_seconds"`

	// Timestamp is when the report was produced (UTC, RFC 3339).
	Timestamp time.Time `json:"timestamp"`
}

// Config tunes orchestrator behaviour. The zero value selects all defaults.
type Config struct {
	// SearchTTL is the cache lifetime for search results.
	SearchTTL time.Duration

	// GenerateTTL is the cache lifetime for generation results.
	GenerateTTL time.Duration

	// ContextTopK is the number of documents retrieved as generation context.
	ContextTopK int

	// MaxContextChars is the character budget for the prompt context block.
	MaxContextChars int

	// SnippetLength is the search snippet truncation length.
	SnippetLength int
}

func (c *Config) applyDefaults() {
	if c.SearchTTL <= 0 {
		c.SearchTTL = DefaultCacheTTL
	}
	if c.GenerateTTL <= 0 {
		c.GenerateTTL = DefaultCacheTTL
	}
	if c.ContextTopK <= 0 {
		c.ContextTopK = DefaultContextTopK
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = budget.DefaultMaxContextChars
	}
	if c.SnippetLength <= 0 {
		c.SnippetLength = DefaultSnippetLength
	}
}

// Orchestrator composes the pipeline components into the ingest, search, and
// generate operations. All methods are safe for concurrent use.
type Orchestrator struct {
	// embedder converts document and query text into vectors.
	embedder Embedder

	// index answers nearest-neighbour queries over the embedded corpus.
	index VectorIndex

	// store holds the canonical document records.
	store DocumentStore

	// cache holds completed search and generation results.
	cache ResultCache

	// generator produces text from composed prompts. May be nil for
	// retrieval-only deployments; Generate then fails validation.
	generator Generator

	// metrics aggregates request observations.
	metrics MetricsRecorder

	// cfg holds resolved tuning values.
	cfg Config

	// writeMu serialises the store-then-index write pair during ingestion so
	// concurrent ingests of the same document cannot interleave.
	writeMu sync.Mutex

	// degraded is set when a generation fails upstream, cleared on success.
	degraded atomic.Bool

	// started is the construction time, for uptime reporting.
	started time.Time
}

// NewOrchestrator wires the pipeline components together. embedder, index,
// store, cache, and metrics are required; generator may be nil when the
// deployment is retrieval-only.
func NewOrchestrator(embedder Embedder, index VectorIndex, store DocumentStore, cache ResultCache, generator Generator, metrics MetricsRecorder, cfg Config) (*Orchestrator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cache == nil {
		return nil, fmt.Errorf("rag: cache must not be nil")
	}
	if metrics == nil {
		return nil, fmt.Errorf("rag: metrics must not be nil")
	}
	cfg.applyDefaults()
	return &Orchestrator{
		embedder:  embedder,
		index:     index,
		store:     store,
		cache:     cache,
		generator: generator,
		metrics:   metrics,
		cfg:       cfg,
		started:   time.Now(),
	}, nil
}

// Ingest validates, deduplicates, embeds, stores, and indexes a batch of
// documents. Validation failures and per-document pipeline failures are
// collected in the result; the rest of the batch proceeds. Duplicate
// documents (same derived id, same content) are skipped before any
// embedding call is made.
func (o *Orchestrator) Ingest(ctx context.Context, docs []IngestDocument) (IngestResult, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	if len(docs) == 0 {
		o.metrics.RecordRequest("ingest", time.Since(start), false, false, 0)
		return IngestResult{}, Validationf("ingest batch must not be empty")
	}

	var res IngestResult

	// First pass: validate and resolve ids without side effects.
	type pending struct {
		batchIndex int
		doc        Document
	}
	var toEmbed []pending
	for i, in := range docs {
		if err := validateIngest(in); err != nil {
			res.Failures = append(res.Failures, IngestFailure{Index: i, Title: in.Title, Error: err.Error()})
			continue
		}

		id := in.ID
		if id == "" {
			id = DocumentID(in.Content, in.URL)
		}

		existing, found, err := o.store.Get(ctx, id)
		if err != nil {
			res.Failures = append(res.Failures, IngestFailure{Index: i, Title: in.Title, Error: err.Error()})
			continue
		}
		if found && existing.Content == in.Content && existing.URL == in.URL && existing.Title == in.Title {
			// Exact duplicate: no embedding call, no write.
			res.Deduplicated++
			continue
		}

		toEmbed = append(toEmbed, pending{
			batchIndex: i,
			doc: Document{
				ID:        id,
				Title:     in.Title,
				Content:   in.Content,
				URL:       in.URL,
				Metadata:  in.Metadata,
				CreatedAt: time.Now().UTC(),
			},
		})
	}

	if len(toEmbed) == 0 {
		ok := len(res.Failures) == 0
		o.metrics.RecordRequest("ingest", time.Since(start), ok, false, 0)
		return res, nil
	}

	texts := make([]string, len(toEmbed))
	for i, p := range toEmbed {
		texts[i] = p.doc.Content
	}

	vecs, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		// The whole remaining batch fails together: embeddings are batched.
		for _, p := range toEmbed {
			res.Failures = append(res.Failures, IngestFailure{
				Index: p.batchIndex,
				Title: p.doc.Title,
				Error: err.Error(),
			})
		}
		o.metrics.RecordRequest("ingest", time.Since(start), false, false, 0)
		return res, fmt.Errorf("rag: batch embedding failed: %w", err)
	}
	if len(vecs) != len(texts) {
		o.metrics.RecordRequest("ingest", time.Since(start), false, false, 0)
		return res, Providerf("embedder", nil, "returned %d vectors for %d texts", len(vecs), len(texts))
	}

	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	for i, p := range toEmbed {
		// Overwriting an existing id retires its old vector first so the
		// index never holds a stale embedding for a live document.
		if err := o.index.Remove(ctx, p.doc.ID); err != nil {
			res.Failures = append(res.Failures, IngestFailure{Index: p.batchIndex, Title: p.doc.Title, Error: err.Error()})
			continue
		}
		if _, err := o.store.Put(ctx, p.doc); err != nil {
			res.Failures = append(res.Failures, IngestFailure{Index: p.batchIndex, Title: p.doc.Title, Error: err.Error()})
			continue
		}
		if err := o.index.Insert(ctx, p.doc.ID, vecs[i]); err != nil {
			res.Failures = append(res.Failures, IngestFailure{Index: p.batchIndex, Title: p.doc.Title, Error: err.Error()})
			continue
		}
		res.Processed++
	}

	log.Info("rag: ingest complete",
		slog.Int("processed", res.Processed),
		slog.Int("deduplicated", res.Deduplicated),
		slog.Int("failed", len(res.Failures)),
	)
	o.metrics.RecordRequest("ingest", time.Since(start), len(res.Failures) == 0, false, 0)
	return res, nil
}

// validateIngest checks one submitted document before any side effects.
func validateIngest(in IngestDocument) error {
	if in.Title == "" {
		return Validationf("document title must not be empty")
	}
	if in.Content == "" {
		return Validationf("document content must not be empty")
	}
	return ValidateMetadata(in.Metadata)
}

// Search retrieves the documents most similar to the query. Results come
// from the cache when a fresh entry exists; otherwise the query is embedded,
// the index queried, and hits resolved against the document store. Index
// entries with no backing document are logged and skipped.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) (SearchResponse, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	if NormalizeQuery(query) == "" {
		o.metrics.RecordRequest("search", time.Since(start), false, false, 0)
		return SearchResponse{}, Validationf("query must not be empty")
	}
	if limit < 0 {
		o.metrics.RecordRequest("search", time.Since(start), false, false, 0)
		return SearchResponse{}, Validationf("limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	key := SearchFingerprint(query, limit)
	if v, ok := o.cache.Get(key); ok {
		if cached, ok := v.(CachedSearch); ok {
			o.metrics.RecordRequest("search", time.Since(start), true, true, 0)
			return SearchResponse{
				Query:          query,
				Results:        cached.Results,
				Count:          len(cached.Results),
				Cached:         true,
				ResponseTimeMs: elapsedMs(start),
			}, nil
		}
	}

	results, _, err := o.retrieve(ctx, query, limit)
	if err != nil {
		o.metrics.RecordRequest("search", time.Since(start), false, false, 0)
		return SearchResponse{}, err
	}

	o.cache.Set(key, CachedSearch{Results: results}, o.cfg.SearchTTL)
	o.metrics.RecordRequest("search", time.Since(start), true, false, 0)

	log.Debug("rag: search complete",
		slog.Int("results", len(results)),
		slog.Int("limit", limit),
	)
	return SearchResponse{
		Query:          query,
		Results:        results,
		Count:          len(results),
		Cached:         false,
		ResponseTimeMs: elapsedMs(start),
	}, nil
}

// elapsedMs returns the time since start in milliseconds.
func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// retrieve embeds the query, queries the index, and resolves hits to search
// results. It returns the resolved documents alongside so Generate can reuse
// them for prompt composition without a second store round trip.
func (o *Orchestrator) retrieve(ctx context.Context, query string, k int) ([]SearchResult, []Document, error) {
	log := logging.FromContext(ctx)

	vecs, err := o.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, nil, fmt.Errorf("rag: query embedding failed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, nil, Providerf("embedder", nil, "returned %d vectors for a single query", len(vecs))
	}

	hits, err := o.index.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, nil, fmt.Errorf("rag: index query failed: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	resolved := make([]Document, 0, len(hits))
	for _, h := range hits {
		doc, found, err := o.store.Get(ctx, h.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("rag: resolving hit %q: %w", h.ID, err)
		}
		if !found {
			// Dangling index entry. Skip it; the result set stays clean.
			log.Warn("rag: skipping dangling index entry", slog.String("document_id", h.ID))
			continue
		}
		results = append(results, SearchResult{
			ID:       doc.ID,
			Title:    doc.Title,
			Snippet:  Snippet(doc.Content, o.cfg.SnippetLength),
			URL:      doc.URL,
			Score:    h.Score,
			Metadata: doc.Metadata,
		})
		resolved = append(resolved, doc)
	}
	return results, resolved, nil
}

// Generate answers a query using retrieved context. The pipeline is
// fingerprint → cache → retrieve → compose prompt → model call → cache write.
// Failed or context-cancelled generations are never cached. Retrieval holds
// no locks during the model call.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	if NormalizeQuery(req.Query) == "" {
		o.metrics.RecordRequest("generate", time.Since(start), false, false, 0)
		return GenerateResponse{}, Validationf("query must not be empty")
	}
	if o.generator == nil {
		o.metrics.RecordRequest("generate", time.Since(start), false, false, 0)
		return GenerateResponse{}, Validationf("generation is not configured on this deployment")
	}
	if req.MaxTokens < 0 {
		o.metrics.RecordRequest("generate", time.Since(start), false, false, 0)
		return GenerateResponse{}, Validationf("max_tokens must not be negative")
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		o.metrics.RecordRequest("generate", time.Since(start), false, false, 0)
		return GenerateResponse{}, Validationf("temperature must be between 0 and 2")
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}

	key := GenerateFingerprint(req.Query, req.MaxTokens, req.Temperature)
	if v, ok := o.cache.Get(key); ok {
		if cached, ok := v.(CachedGenerate); ok {
			o.metrics.RecordRequest("generate", time.Since(start), true, true, 0)
			return GenerateResponse{
				Text:           cached.Text,
				Sources:        cached.Sources,
				TokensUsed:     cached.TokensUsed,
				Cached:         true,
				ResponseTimeMs: elapsedMs(start),
			}, nil
		}
	}

	// Context retrieval uses a fixed small top-k, not the search limit.
	results, docs, err := o.retrieve(ctx, req.Query, o.cfg.ContextTopK)
	if err != nil {
		o.metrics.RecordRequest("generate", time.Since(start), false, false, 0)
		return GenerateResponse{}, err
	}

	sources := make([]SourceRef, len(results))
	for i, r := range results {
		sources[i] = SourceRef{ID: r.ID, Title: r.Title, Snippet: r.Snippet, URL: r.URL, Score: r.Score}
	}

	prompt := ComposePrompt(req.Query, docs, o.cfg.MaxContextChars)

	gen, err := o.generator.Complete(ctx, prompt, req.MaxTokens, req.Temperature)
	if err != nil {
		if GenerationReason(err) == ReasonUpstreamFailure {
			o.degraded.Store(true)
		}
		o.metrics.RecordRequest("generate", time.Since(start), false, false, 0)
		return GenerateResponse{}, err
	}
	o.degraded.Store(false)

	resp := GenerateResponse{
		Text:       gen.Text,
		Sources:    sources,
		TokensUsed: gen.TokensUsed,
	}

	// A cancelled request must not populate the cache with a result the
	// caller never received.
	if ctx.Err() == nil {
		o.cache.Set(key, CachedGenerate{
			Text:       resp.Text,
			Sources:    resp.Sources,
			TokensUsed: resp.TokensUsed,
		}, o.cfg.GenerateTTL)
	}

	log.Info("rag: generation complete",
		slog.Int("sources", len(sources)),
		slog.Int("tokens_used", gen.TokensUsed),
	)
	o.metrics.RecordRequest("generate", time.Since(start), true, false, gen.TokensUsed)
	resp.ResponseTimeMs = elapsedMs(start)
	return resp, nil
}

// Metrics returns the current aggregated request metrics.
func (o *Orchestrator) Metrics(ctx context.Context) MetricsSnapshot {
	return o.metrics.Snapshot()
}

// Health reports service health. The status turns unhealthy when the most
// recent generation failed upstream and recovers on the next success.
func (o *Orchestrator) Health(ctx context.Context) HealthStatus {
	status := "healthy"
	if o.degraded.Load() {
		status = "unhealthy"
	}

	count, err := o.store.Count(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("rag: health document count failed", slog.String("error", err.Error()))
		status = "unhealthy"
	}

	return HealthStatus{
		Status:        status,
		DocumentCount: count,
		UptimeSeconds: time.Since(o.started).Seconds(),
		Timestamp:     time.Now().UTC(),
	}
}

// Remove deletes a document from both the store and the index. Removal from
// the index happens first so a query racing a removal can at worst observe a
// dangling store record, never a dangling index hit.
func (o *Orchestrator) Remove(ctx context.Context, id string) error {
	if id == "" {
		return Validationf("document id must not be empty")
	}
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	if err := o.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("rag: removing %q from index: %w", id, err)
	}
	if err := o.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("rag: removing %q from store: %w", id, err)
	}
	return nil
}

// Documents lists the stored corpus in insertion order.
func (o *Orchestrator) Documents(ctx context.Context) ([]Document, error) {
	docs, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: listing documents: %w", err)
	}
	return docs, nil
}
