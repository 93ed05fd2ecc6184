package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ctxgen/ragserve-go/internal/cache"
	"github.com/ctxgen/ragserve-go/internal/docstore"
	"github.com/ctxgen/ragserve-go/internal/embedder"
	"github.com/ctxgen/ragserve-go/internal/genclient"
	"github.com/ctxgen/ragserve-go/internal/index"
	"github.com/ctxgen/ragserve-go/internal/metrics"
	"github.com/ctxgen/ragserve-go/internal/provider"
	"github.com/ctxgen/ragserve-go/internal/rag"
)

// reindexBatchSize is the number of stored documents embedded per batch when
// rebuilding the in-process index at startup.
const reindexBatchSize = 32

// pipelineDeps bundles the constructed pipeline with the handles callers
// need beyond the orchestrator itself.
type pipelineDeps struct {
	// Orch is the wired orchestrator.
	Orch *rag.Orchestrator
	// Registry is the Prometheus registry the metrics mirrors live in.
	Registry *prometheus.Registry
	// Cache is the result cache, exposed so serve can start its sweeper.
	Cache *cache.TTL
	// QdrantIndex is the Qdrant index when QDRANT_HOST is set, nil otherwise.
	QdrantIndex *index.Qdrant
	// Store is the document store, exposed for the readiness probe.
	Store rag.DocumentStore
	// Close releases every component in reverse construction order.
	Close func()
}

// buildPipeline constructs the full RAG pipeline from environment
// configuration. withGenerator controls whether an LLM backend is
// initialised; ingest and search do not need one.
//
// Component selection:
//
//	vector index   — Qdrant when QDRANT_HOST is set, in-process otherwise
//	document store — SQLite at RAGSERVE_DB (default ~/.ragserve/documents.db),
//	                 in-memory when RAGSERVE_DB=disabled
//	cache TTLs     — CACHE_SEARCH_TTL / CACHE_GENERATE_TTL seconds (default 3600)
func buildPipeline(ctx context.Context, log *slog.Logger, withGenerator bool) (*pipelineDeps, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embedder.ResolveBackend()))

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Vector index.
	var idx rag.VectorIndex
	var qdrantIdx *index.Qdrant
	if qdrantHost := os.Getenv("QDRANT_HOST"); qdrantHost != "" {
		vectorSize := uint64(embedder.DefaultDimensions(embedder.ResolveBackend())) //nolint:gosec // dimensions are bounded
		q, err := index.NewQdrant(ctx, &index.QdrantConfig{
			Host:       qdrantHost,
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "ragserve-docs"),
			VectorSize: vectorSize,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", qdrantHost, err)
		}
		closers = append(closers, func() { _ = q.Close() })
		qdrantIdx = q
		idx = q
		log.Info("qdrant index ready",
			slog.String("host", qdrantHost),
			slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "ragserve-docs")),
		)
	} else {
		idx = index.NewMemory(0)
		log.Info("in-process vector index ready")
	}

	// Document store.
	var store rag.DocumentStore
	dbPath := os.Getenv("RAGSERVE_DB")
	if dbPath == "disabled" {
		store = docstore.NewMemory()
		log.Info("document store: in-memory (RAGSERVE_DB=disabled)")
	} else {
		if dbPath == "" {
			dbPath, err = docstore.DefaultDBPath()
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("failed to resolve document DB path: %w", err)
			}
		}
		s, err := docstore.OpenSQLite(dbPath)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open document store: %w", err)
		}
		closers = append(closers, func() { _ = s.Close() })
		store = s
		log.Info("document store opened", slog.String("path", dbPath))
	}

	// The in-process index starts empty; rebuild it from the persisted corpus.
	if qdrantIdx == nil {
		if err := reindex(ctx, log, emb, idx, store); err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to rebuild index from store: %w", err)
		}
	}

	resultCache := cache.New()
	registry := prometheus.NewRegistry()
	agg := metrics.New(registry)

	// Generation backend, only when the command needs one.
	var gen rag.Generator
	if withGenerator {
		chatModel, err := provider.NewFromEnv(ctx)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialise model provider: %w", err)
		}
		timeout := time.Duration(getEnvInt("MODEL_TIMEOUT", 60)) * time.Second
		client, err := genclient.New(chatModel, timeout, genclient.DefaultRetryPolicy())
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialise generation client: %w", err)
		}
		gen = client
		log.Info("generation backend initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))
	}

	orch, err := rag.NewOrchestrator(emb, idx, store, resultCache, gen, agg, rag.Config{
		SearchTTL:   time.Duration(getEnvInt("CACHE_SEARCH_TTL", 3600)) * time.Second,
		GenerateTTL: time.Duration(getEnvInt("CACHE_GENERATE_TTL", 3600)) * time.Second,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to wire pipeline: %w", err)
	}

	return &pipelineDeps{
		Orch:        orch,
		Registry:    registry,
		Cache:       resultCache,
		QdrantIndex: qdrantIdx,
		Store:       store,
		Close:       closeAll,
	}, nil
}

// reindex re-embeds every stored document and inserts it into the index.
// Runs at startup for the in-process index, which does not persist vectors.
func reindex(ctx context.Context, log *slog.Logger, emb rag.Embedder, idx rag.VectorIndex, store rag.DocumentStore) error {
	docs, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	log.Info("rebuilding vector index from persisted corpus", slog.Int("documents", len(docs)))
	for start := 0; start < len(docs); start += reindexBatchSize {
		end := start + reindexBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vecs, err := emb.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch at %d: %w", start, err)
		}
		for i, d := range batch {
			if err := idx.Insert(ctx, d.ID, vecs[i]); err != nil {
				return fmt.Errorf("indexing %q: %w", d.ID, err)
			}
		}
	}
	return nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
