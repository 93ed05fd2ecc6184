package commands

import (
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/ctxgen/ragserve-go/internal/logging"
	"github.com/ctxgen/ragserve-go/internal/rag"
	"github.com/ctxgen/ragserve-go/internal/tracing"
)

// NewGenerateCmd constructs the `ragserve generate` command, which answers a
// query using retrieved context and the configured LLM backend.
func NewGenerateCmd() *cobra.Command {
	var maxTokens int
	var temperature float32

	cmd := &cobra.Command{
		Use:   "generate [query]",
		Short: "Generate an answer grounded in retrieved documents",
		Long: `Retrieve the most relevant documents for a query, compose a grounded
prompt, and print the model's answer with its sources.

Examples:
  ragserve generate "summarise what the corpus says about caching"
  ragserve generate --max-tokens 200 "what is cosine similarity?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			// Tracing covers one-shot generations too, when configured.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			deps, err := buildPipeline(ctx, log, true)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			defer deps.Close()

			res, err := deps.Orch.Generate(ctx, rag.GenerateRequest{
				Query:       args[0],
				MaxTokens:   maxTokens,
				Temperature: temperature,
			})
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			fmt.Println(res.Text)
			if len(res.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, s := range res.Sources {
					fmt.Printf("  [%d] %s (score %.4f)\n", i+1, s.Title, s.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum response tokens (default 500)")
	cmd.Flags().Float32Var(&temperature, "temperature", 0, "Sampling temperature (default 0.7)")

	return cmd
}
