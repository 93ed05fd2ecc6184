package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ctxgen/ragserve-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Gatherer is the Prometheus registry exposed at GET /metrics.
	// If nil, /metrics is not registered.
	Gatherer prometheus.Gatherer
}

// pipeline is the interface the handlers call into. *rag.Orchestrator
// satisfies it; tests inject a fake.
type pipeline interface {
	// Ingest validates, embeds, stores, and indexes a document batch.
	Ingest(ctx context.Context, docs []rag.IngestDocument) (rag.IngestResult, error)
	// Search retrieves the documents most similar to the query.
	Search(ctx context.Context, query string, limit int) (rag.SearchResponse, error)
	// Generate answers a query using retrieved context.
	Generate(ctx context.Context, req rag.GenerateRequest) (rag.GenerateResponse, error)
	// Metrics returns the current aggregated request metrics.
	Metrics(ctx context.Context) rag.MetricsSnapshot
	// Health reports service health.
	Health(ctx context.Context) rag.HealthStatus
}

// Server is the HTTP adapter over the RAG pipeline.
type Server struct {
	// pipeline handles all API operations.
	pipeline pipeline
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Documents is the batch to ingest.
	Documents []rag.IngestDocument `json:"documents"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the search query text.
	Query string `json:"query"`
	// Limit is the maximum number of results (default 10, max 50).
	Limit int `json:"limit,omitempty"`
}

// errorResponse is the JSON error body returned by all API endpoints.
type errorResponse struct {
	// Error describes what went wrong.
	Error string `json:"error"`
	// Kind classifies the error: validation, provider, generation, internal.
	Kind string `json:"kind"`
	// Reason carries the generation reason code when Kind is "generation".
	Reason string `json:"reason,omitempty"`

	// Failures enumerates per-document ingest failures when a batch-level
	// error aborted the rest of the batch.
	Failures []rag.IngestFailure `json:"failures,omitempty"`
}

// indexResponse is the JSON body for GET /, describing the API surface.
type indexResponse struct {
	// Service is the service name.
	Service string `json:"service"`
	// Version is the build version.
	Version string `json:"version"`
	// Endpoints maps route to a short description.
	Endpoints map[string]string `json:"endpoints"`
}
