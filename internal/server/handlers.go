package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ctxgen/ragserve-go/internal/logging"
	"github.com/ctxgen/ragserve-go/internal/rag"
	"github.com/ctxgen/ragserve-go/internal/version"
)

// maxRequestBody caps request body size to keep oversized ingest payloads
// from exhausting memory. 10 MiB covers realistic document batches.
const maxRequestBody = 10 << 20

// handleIndex handles GET /, returning a description of the API surface.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Service: "ragserve",
		Version: version.Version,
		Endpoints: map[string]string{
			"POST /api/ingest":   "ingest a batch of documents",
			"POST /api/search":   "semantic search over the corpus",
			"POST /api/generate": "generate an answer grounded in retrieved context",
			"GET /api/metrics":   "aggregated request metrics",
			"GET /api/health":    "liveness and pipeline health",
			"GET /api/ready":     "dependency readiness probes",
			"GET /metrics":       "Prometheus exposition",
		},
	})
}

// handleIngest handles POST /api/ingest.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.pipeline.Ingest(r.Context(), req.Documents)
	if err != nil {
		// A batch-level failure (e.g. the embedding call) can still carry
		// per-document failures collected before the abort; keep them visible.
		status, body := mapError(r, err)
		body.Failures = res.Failures
		writeJSON(w, status, body)
		return
	}

	status := http.StatusOK
	if len(res.Failures) > 0 {
		// Partial success: processed and failed documents are both reported.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.pipeline.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGenerate handles POST /api/generate.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req rag.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.pipeline.Generate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleMetrics handles GET /api/metrics, the JSON metrics snapshot.
// The Prometheus exposition lives at GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Metrics(r.Context()))
}

// handleHealth handles GET /api/health. An unhealthy pipeline still returns
// 200 — the process is alive; /api/ready reflects dependency state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Health(r.Context()))
}

// decodeJSON decodes the request body into v, writing a 400 response and
// returning false when the body is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  "validation",
		})
		return false
	}
	return true
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a pipeline error to its HTTP response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(r, err)
	writeJSON(w, status, body)
}

// mapError maps pipeline errors to HTTP status codes and response bodies:
//
//	ValidationError          → 400
//	GenerationError          → 429 (rate_limited), 504 (timeout), 502 otherwise
//	ProviderError            → 502
//	anything else            → 500
func mapError(r *http.Request, err error) (int, errorResponse) {
	log := logging.FromContext(r.Context())

	var ve *rag.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Error: ve.Message, Kind: "validation"}
	}

	var ge *rag.GenerationError
	if errors.As(err, &ge) {
		status := http.StatusBadGateway
		switch ge.Reason {
		case rag.ReasonRateLimited:
			status = http.StatusTooManyRequests
		case rag.ReasonTimeout:
			status = http.StatusGatewayTimeout
		}
		log.Error("generation failed",
			slog.String("reason", ge.Reason),
			slog.String("error", ge.Error()),
		)
		return status, errorResponse{Error: ge.Message, Kind: "generation", Reason: ge.Reason}
	}

	var pe *rag.ProviderError
	if errors.As(err, &pe) {
		log.Error("provider failed",
			slog.String("provider", pe.Provider),
			slog.String("error", pe.Error()),
		)
		return http.StatusBadGateway, errorResponse{Error: pe.Message, Kind: "provider"}
	}

	log.Error("internal error", slog.String("error", err.Error()))
	return http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "internal"}
}
