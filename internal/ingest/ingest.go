// Package ingest populates the vector index from textbook source files:
// extract, chunk, hash, embed, upsert. Upsert failures surface to the caller
// because they mean the index has drifted from the source content.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/helper"
	"textbook-rag/internal/models"
)

// embedBatchSize bounds how many chunk texts go into one embedding request.
const embedBatchSize = 64

// BatchEmbedder embeds chunk texts; the result is parallel to the input.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Upserter stores chunks with their vectors under hash-derived identities.
type Upserter interface {
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
}

type Ingestor struct {
	embedder     BatchEmbedder
	index        Upserter
	chunkSize    int
	chunkOverlap int
	dryRun       bool
}

func New(embedder BatchEmbedder, index Upserter, chunkSize, chunkOverlap int, dryRun bool) *Ingestor {
	return &Ingestor{
		embedder:     embedder,
		index:        index,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		dryRun:       dryRun,
	}
}

// IngestPath indexes a single file, or every supported file under a
// directory. Returns the number of chunks stored.
func (ing *Ingestor) IngestPath(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return ing.ingestFile(ctx, path)
	}

	total := 0
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".md", ".markdown", ".pdf", ".docx", ".txt":
		default:
			log.Debug().Str("file", p).Msg("Skipping unsupported file")
			return nil
		}
		n, err := ing.ingestFile(ctx, p)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", p, err)
		}
		total += n
		return nil
	})
	return total, err
}

func (ing *Ingestor) ingestFile(ctx context.Context, path string) (int, error) {
	sections, err := extractSections(path)
	if err != nil {
		return 0, err
	}

	sourceFile := filepath.Base(path)
	chunks := buildChunks(sections, sourceFile, ing.chunkSize, ing.chunkOverlap)
	if len(chunks) == 0 {
		log.Info().Str("file", sourceFile).Msg("No content to index")
		return 0, nil
	}

	if ing.dryRun {
		helper.PrettyPrint(chunks)
		return len(chunks), nil
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding %d chunks: %w", len(batch), err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embedding provider returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		if err := ing.index.Upsert(ctx, batch, vectors); err != nil {
			return 0, err
		}
	}

	log.Info().Str("file", sourceFile).Int("chunks", len(chunks)).Msg("Indexed file")
	return len(chunks), nil
}
