package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// NormalizeQuery canonicalises a query for fingerprinting: leading and
// trailing whitespace is stripped and internal runs of whitespace collapse
// to a single space. Case is preserved — embeddings are case-sensitive, so
// two queries differing only in case are distinct requests.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// SearchFingerprint returns the cache key for a search request. Two requests
// with the same normalized query and limit always produce the same key.
func SearchFingerprint(query string, limit int) string {
	return fingerprint("search", NormalizeQuery(query), fmt.Sprintf("%d", limit))
}

// GenerateFingerprint returns the cache key for a generation request. All
// parameters that influence the output participate in the key.
func GenerateFingerprint(query string, maxTokens int, temperature float32) string {
	return fingerprint("generate",
		NormalizeQuery(query),
		fmt.Sprintf("%d", maxTokens),
		fmt.Sprintf("%.4f", temperature),
	)
}

// fingerprint hashes the operation name and its parameters into a stable hex
// key. The operation name namespaces the key space so a search entry can
// never collide with a generation entry.
func fingerprint(op string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(op))
	for _, p := range parts {
		h.Write([]byte{0x1f})
		h.Write([]byte(p))
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil))
}

// shortHash returns the first 16 hex chars of sha256(s), used for document ids.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
