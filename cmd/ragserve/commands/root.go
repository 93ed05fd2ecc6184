// Package commands defines all Cobra CLI commands for the ragserve binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ctxgen/ragserve-go/internal/audit"
	"github.com/ctxgen/ragserve-go/internal/config"
	"github.com/ctxgen/ragserve-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragserve",
		Short: "ragserve — retrieval-augmented generation service",
		Long: `ragserve ingests documents, indexes their embeddings, and answers
queries with semantic search and LLM generation grounded in retrieved context.

It runs as an HTTP service ('ragserve serve') or as one-shot CLI commands
for ingestion and querying.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.ragserve/config.yaml).
See 'ragserve --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragserve/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewGenerateCmd(),
		NewVersionCmd(),
	)

	return root
}
