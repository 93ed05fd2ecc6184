package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ctxgen/ragserve-go/internal/index"
)

// HTTPPinger probes a dependency by issuing a GET request and expecting a
// 2xx response. It satisfies the Pinger interface and is used by
// GET /api/ready for HTTP-fronted dependencies like Ollama.
type HTTPPinger struct {
	// url is the endpoint to probe (e.g. "http://localhost:11434/api/tags").
	url string
	// name identifies the dependency in readiness responses.
	name string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for the given probe URL and label.
func NewHTTPPinger(url, name string) *HTTPPinger {
	return &HTTPPinger{
		url:    url,
		name:   name,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the probe request and checks for a 2xx response.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// QdrantPinger probes the Qdrant-backed index using its native health check.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// idx is the Qdrant index to probe.
	idx *index.Qdrant
}

// NewQdrantPinger constructs a QdrantPinger for the given index.
func NewQdrantPinger(idx *index.Qdrant) *QdrantPinger {
	return &QdrantPinger{idx: idx}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant health check RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	return p.idx.Ping(ctx)
}

// docstorePinger probes a document store by running a cheap count query.
type docstorePinger struct {
	// count is the store's Count method.
	count func(ctx context.Context) (int, error)
}

// NewDocstorePinger constructs a Pinger over a document store Count func.
func NewDocstorePinger(count func(ctx context.Context) (int, error)) Pinger {
	return &docstorePinger{count: count}
}

// Name returns the dependency label used in readiness responses.
func (p *docstorePinger) Name() string { return "docstore" }

// Ping runs the count query under a short deadline.
func (p *docstorePinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := p.count(ctx); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	return nil
}
