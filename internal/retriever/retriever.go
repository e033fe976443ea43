package retriever

import (
	"context"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/models"
)

// DefaultLimit is the number of chunks retrieved when the caller passes 0.
const DefaultLimit = 5

// QueryEmbedder turns a query string into a vector in the index's space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs nearest-neighbour search over stored chunks. It degrades
// to an empty slice on failure instead of returning an error.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) []models.ScoredChunk
}

// Retriever composes the embedding client and the vector index. Retrieval
// degradation never crosses its boundary: every failure becomes an empty
// result so the pipeline can still generate an answer.
type Retriever struct {
	embedder QueryEmbedder
	index    Searcher
}

func New(embedder QueryEmbedder, index Searcher) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns at most limit chunks most similar to query, in descending
// similarity order.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) []models.ScoredChunk {
	if limit <= 0 {
		limit = DefaultLimit
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil || len(vector) == 0 {
		log.Warn().Err(err).Msg("Query embedding unavailable, retrieving nothing")
		return nil
	}

	return r.index.Search(ctx, vector, limit)
}
