package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/ctxgen/ragserve-go/internal/embedder"
	"github.com/ctxgen/ragserve-go/internal/logging"
	"github.com/ctxgen/ragserve-go/internal/server"
	"github.com/ctxgen/ragserve-go/internal/tracing"
)

// cacheSweepInterval is how often the result cache evicts expired entries.
const cacheSweepInterval = 5 * time.Minute

// NewServeCmd constructs the `ragserve serve` command, which starts the HTTP
// server exposing the RAG pipeline.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragserve HTTP server",
		Long: `Start the ragserve HTTP server on localhost.

The server exposes JSON endpoints for document ingestion, semantic search,
and grounded generation, plus health, readiness, and metrics endpoints.

Examples:
  ragserve serve
  ragserve serve --port 9090
  MODEL_PROVIDER=azure ragserve serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			deps, err := buildPipeline(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.Close()

			stopSweeper := deps.Cache.StartSweeper(cacheSweepInterval)
			defer stopSweeper()

			srv, err := server.New(deps.Orch, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  buildPingers(deps),
				APIKey:   os.Getenv("RAGSERVE_API_KEY"),
				Gatherer: deps.Registry,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// buildPingers assembles the readiness probes for the configured backends:
// the embedding endpoint when it is a local Ollama, Qdrant when in use, and
// the document store.
func buildPingers(deps *pipelineDeps) []server.Pinger {
	var pingers []server.Pinger

	if embedder.ResolveBackend() == "ollama" {
		host := getEnvOrDefault("EMBEDDING_ENDPOINT", getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"))
		pingers = append(pingers, server.NewHTTPPinger(host+"/api/tags", "ollama"))
	}
	if deps.QdrantIndex != nil {
		pingers = append(pingers, server.NewQdrantPinger(deps.QdrantIndex))
	}
	pingers = append(pingers, server.NewDocstorePinger(deps.Store.Count))

	return pingers
}
