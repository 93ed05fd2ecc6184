package rag

import (
	"fmt"
	"strings"

	"github.com/ctxgen/ragserve-go/internal/budget"
)

// promptHeader opens every generation prompt.
const promptHeader = `You are a knowledgeable assistant. Answer the query using the provided context documents.`

// promptInstructions closes the context block.
const promptInstructions = `Instructions:
- Ground your answer in the context above. Cite sources by their bracketed numbers where relevant.
- If the context does not contain enough information, say so plainly instead of inventing facts.
- Be concise and factual.`

// emptyContextNote replaces the context block when retrieval found nothing.
const emptyContextNote = `(no relevant documents found)`

// ComposePrompt assembles the generation prompt from the query and retrieved
// documents. Each document becomes a numbered source block; blocks are kept
// in retrieval order and trimmed to maxContextChars, dropping the least
// relevant first. An empty document list produces a prompt with an explicit
// empty-context note so generation degrades gracefully on an empty corpus.
func ComposePrompt(query string, docs []Document, maxContextChars int) string {
	if maxContextChars <= 0 {
		maxContextChars = budget.DefaultMaxContextChars
	}

	blocks := make([]string, 0, len(docs))
	for i, d := range docs {
		title := d.Title
		if title == "" {
			title = d.ID
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s\n", i+1, title, d.Content))
	}
	blocks = budget.TrimBlocks(blocks, maxContextChars)

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nContext:\n")
	if len(blocks) == 0 {
		b.WriteString(emptyContextNote)
		b.WriteString("\n")
	} else {
		for _, blk := range blocks {
			b.WriteString(blk)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(promptInstructions)
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	return b.String()
}
