package rag

// ValidateMetadata checks a document metadata map against the allowed shape:
// string keys mapping to strings, numbers, booleans, or one level of nested
// map with the same scalar values. Deeper nesting and other types (slices,
// structs) are rejected so every storage backend can round-trip the map.
func ValidateMetadata(md map[string]any) error {
	for k, v := range md {
		if k == "" {
			return Validationf("metadata key must not be empty")
		}
		switch val := v.(type) {
		case string, bool, int, int32, int64, float32, float64:
			// scalar, fine
		case map[string]any:
			for nk, nv := range val {
				if nk == "" {
					return Validationf("metadata key %q: nested key must not be empty", k)
				}
				switch nv.(type) {
				case string, bool, int, int32, int64, float32, float64:
				default:
					return Validationf("metadata key %q.%q: unsupported value type %T", k, nk, nv)
				}
			}
		default:
			return Validationf("metadata key %q: unsupported value type %T", k, v)
		}
	}
	return nil
}

// Snippet truncates content to at most maxLen characters, appending an
// ellipsis when truncation occurred. Truncation is byte-based on purpose:
// document content is stored as-is and snippets are display hints, not
// canonical text.
func Snippet(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}

// DocumentID derives the deterministic identifier for a document from its
// content and URL. Two ingests of identical (content, url) always produce
// the same id, which is what makes re-ingestion a no-op.
func DocumentID(content, url string) string {
	return "doc_" + shortHash(content+"|"+url)
}
