package rag

import (
	"strings"

	"textbook-rag/internal/models"
)

// AssembleContext formats retrieved chunks into the grounding block handed to
// the generator. Pure and deterministic: identical input yields byte-identical
// output. Rank order is preserved because model attention is
// position-sensitive; no reordering or deduplication happens here.
func AssembleContext(results []models.ScoredChunk) string {
	if len(results) == 0 {
		return models.NoContentMarker
	}

	var b strings.Builder
	b.WriteString(models.ContextHeader)
	for _, result := range results {
		b.WriteString(models.ContextSeparator)
		b.WriteString(result.Text)
		b.WriteString("\n")
	}
	return b.String()
}
