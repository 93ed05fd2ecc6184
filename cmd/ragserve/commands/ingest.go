package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctxgen/ragserve-go/internal/logging"
	"github.com/ctxgen/ragserve-go/internal/rag"
)

// NewIngestCmd constructs the `ragserve ingest` command, which loads a JSON
// corpus file into the document store and vector index.
func NewIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a JSON corpus file into the document store and index",
		Long: `Ingest documents from a JSON file into the ragserve corpus.

The file holds an array of documents:

  [
    {"title": "...", "content": "...", "url": "...", "metadata": {"topic": "..."}},
    ...
  ]

Documents with identical content and URL are deduplicated — re-running the
same file is a no-op. Pass --file - to read the array from stdin.

Required environment variables match 'ragserve serve': EMBEDDING_* selects
the embedding backend, QDRANT_HOST enables the Qdrant index, RAGSERVE_DB
sets the document database path.

Examples:
  ragserve ingest --file corpus.json
  cat corpus.json | ragserve ingest --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			if file == "" {
				return fmt.Errorf("ingest: --file is required")
			}

			docs, err := readCorpus(file)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(docs) == 0 {
				return fmt.Errorf("ingest: corpus file contains no documents")
			}

			deps, err := buildPipeline(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer deps.Close()

			res, err := deps.Orch.Ingest(ctx, docs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("processed", res.Processed),
				slog.Int("deduplicated", res.Deduplicated),
				slog.Int("failed", len(res.Failures)),
			)
			for _, f := range res.Failures {
				log.Warn("document failed",
					slog.Int("index", f.Index),
					slog.String("title", f.Title),
					slog.String("error", f.Error),
				)
			}

			fmt.Printf("processed %d, deduplicated %d, failed %d\n",
				res.Processed, res.Deduplicated, len(res.Failures))
			if len(res.Failures) > 0 {
				return fmt.Errorf("ingest: %d of %d documents failed", len(res.Failures), len(docs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSON corpus file ('-' for stdin)")

	return cmd
}

// readCorpus reads and decodes a JSON document array from path or stdin.
func readCorpus(path string) ([]rag.IngestDocument, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open corpus file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var docs []rag.IngestDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode corpus file: %w", err)
	}
	return docs, nil
}
