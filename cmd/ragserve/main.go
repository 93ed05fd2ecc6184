// Command ragserve is the entry point for the ragserve retrieval-augmented
// generation service. It provides a CLI (via Cobra) and an HTTP server
// exposing ingestion, search, and generation endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/ctxgen/ragserve-go/cmd/ragserve/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
