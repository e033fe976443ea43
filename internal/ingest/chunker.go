package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"textbook-rag/internal/models"
)

// chunkContent splits content into chunks of at most maxChars with
// overlapChars carried between neighbours, preferring to break on a space,
// newline, or sentence end near the boundary.
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// Look for a clean break within the last 10% of the chunk.
		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(content[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		start += maxChars - overlapChars
		if start >= contentLen {
			break
		}
	}
	return chunks
}

// chunkHash derives the stable identity of a chunk from its source file and
// exact text. Re-ingesting unchanged content reproduces the same hash, which
// keeps index upserts idempotent.
func chunkHash(sourceFile, content string) string {
	sum := sha256.Sum256([]byte(sourceFile + "\x00" + content))
	return hex.EncodeToString(sum[:])
}

// buildChunks turns extracted sections into hashed chunk records for one
// source file.
func buildChunks(sections []string, sourceFile string, maxChars, overlapChars int) []models.Chunk {
	var chunks []models.Chunk
	for _, section := range sections {
		for _, text := range chunkContent(section, maxChars, overlapChars) {
			chunks = append(chunks, models.Chunk{
				Content:    text,
				SourceFile: sourceFile,
				Hash:       chunkHash(sourceFile, text),
			})
		}
	}
	return chunks
}
