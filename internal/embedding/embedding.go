package embedding

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"textbook-rag/internal/config"
)

// Embedder converts text into fixed-dimension vectors using a single
// configured model, so every vector in the index stays comparable. It is
// built once at startup and shared across concurrent requests.
type Embedder struct {
	impl  *embeddings.EmbedderImpl
	model string
}

// NewEmbedder creates the embedding provider client.
func NewEmbedder(cfg *config.OpenAIConfig) (*Embedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.EmbeddingModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return &Embedder{impl: impl, model: cfg.EmbeddingModel}, nil
}

// Model returns the embedding model name all vectors are produced with.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedQuery embeds a single text. Callers must treat an error (or an empty
// vector) as "embedding unavailable" and degrade; no retries happen here.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.impl.EmbedQuery(ctx, text)
}

// EmbedBatch embeds texts in order; the result is parallel to the input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.impl.EmbedDocuments(ctx, texts)
}
