package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxgen/ragserve-go/internal/logging"
)

// NewSearchCmd constructs the `ragserve search` command, which runs a
// one-shot semantic search against the local corpus.
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the corpus for documents similar to a query",
		Long: `Run a semantic search against the ingested corpus and print the matches.

Examples:
  ragserve search "how do embeddings work"
  ragserve search --limit 10 "vector databases"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			deps, err := buildPipeline(ctx, log, false)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer deps.Close()

			res, err := deps.Orch.Search(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if res.Count == 0 {
				fmt.Println("no matches")
				return nil
			}
			for i, r := range res.Results {
				fmt.Printf("%d. %s (score %.4f)\n", i+1, r.Title, r.Score)
				if r.URL != "" {
					fmt.Printf("   %s\n", r.URL)
				}
				fmt.Printf("   %s\n", r.Snippet)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default 10)")

	return cmd
}
