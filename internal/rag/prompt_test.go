package rag

import (
	"strings"
	"testing"
)

// TestComposePrompt_NumbersSources verifies that documents appear as numbered
// blocks in retrieval order and the query closes the prompt.
func TestComposePrompt_NumbersSources(t *testing.T) {
	t.Parallel()

	docs := []Document{
		{ID: "doc_1", Title: "First", Content: "alpha content"},
		{ID: "doc_2", Title: "Second", Content: "beta content"},
	}

	p := ComposePrompt("what is alpha?", docs, 4000)

	first := strings.Index(p, "[1] First\nalpha content")
	second := strings.Index(p, "[2] Second\nbeta content")
	if first == -1 || second == -1 {
		t.Fatalf("numbered source blocks missing from prompt:\n%s", p)
	}
	if first > second {
		t.Error("source blocks out of retrieval order")
	}
	if !strings.HasSuffix(p, "Query: what is alpha?") {
		t.Errorf("prompt must end with the query, got: %q", p[len(p)-40:])
	}
}

// TestComposePrompt_EmptyCorpus verifies graceful degradation: an empty
// document list yields a prompt with an explicit empty-context note.
func TestComposePrompt_EmptyCorpus(t *testing.T) {
	t.Parallel()

	p := ComposePrompt("anything", nil, 4000)
	if !strings.Contains(p, "(no relevant documents found)") {
		t.Errorf("empty-context note missing:\n%s", p)
	}
	if !strings.Contains(p, "Query: anything") {
		t.Error("query missing from prompt")
	}
}

// TestComposePrompt_TrimsToBudget verifies that the context block respects
// the character budget, dropping the least relevant document first.
func TestComposePrompt_TrimsToBudget(t *testing.T) {
	t.Parallel()

	docs := []Document{
		{ID: "doc_1", Title: "Best", Content: strings.Repeat("a", 200)},
		{ID: "doc_2", Title: "Worst", Content: strings.Repeat("b", 200)},
	}

	p := ComposePrompt("q", docs, 250)
	if !strings.Contains(p, "[1] Best") {
		t.Error("best match must survive trimming")
	}
	if strings.Contains(p, "[2] Worst") {
		t.Error("least relevant block should have been dropped")
	}
}

// TestComposePrompt_UntitledFallsBackToID verifies that a document without a
// title is labelled by its id.
func TestComposePrompt_UntitledFallsBackToID(t *testing.T) {
	t.Parallel()

	docs := []Document{{ID: "doc_abc", Content: "text"}}
	p := ComposePrompt("q", docs, 4000)
	if !strings.Contains(p, "[1] doc_abc") {
		t.Errorf("expected id used as block label:\n%s", p)
	}
}
