package vectorindex

import (
	"context"
	"crypto/md5"
	"fmt"
	"math/big"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/config"
	"textbook-rag/internal/models"
)

// Index wraps the Qdrant collection holding the textbook embeddings. The
// collection is created once with a fixed dimensionality and cosine distance;
// both must match the embedding model's output exactly.
type Index struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

func New(cfg *config.QdrantConfig) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: creating qdrant client: %w", err)
	}
	return &Index{
		client:     client,
		collection: cfg.Collection,
		vectorSize: uint64(cfg.VectorSize),
	}, nil
}

func (ix *Index) Close() error {
	return ix.client.Close()
}

// EnsureCollection creates the collection if it does not exist yet.
func (ix *Index) EnsureCollection(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: checking collection %s: %w", ix.collection, err)
	}
	if exists {
		return nil
	}
	return ix.createCollection(ctx)
}

// Recreate drops and recreates the collection, deleting every stored point.
// Administrative operation only; it must never run on the query path.
func (ix *Index) Recreate(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: checking collection %s: %w", ix.collection, err)
	}
	if exists {
		if err := ix.client.DeleteCollection(ctx, ix.collection); err != nil {
			return fmt.Errorf("vectorindex: deleting collection %s: %w", ix.collection, err)
		}
	}
	return ix.createCollection(ctx)
}

func (ix *Index) createCollection(ctx context.Context) error {
	err := ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: creating collection %s: %w", ix.collection, err)
	}
	return nil
}

var maxPointID = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 63), big.NewInt(1))

// PointID reduces a chunk content hash into Qdrant's non-negative 63-bit
// integer id space. The derivation is deterministic, so re-upserting
// unchanged content overwrites the prior point instead of duplicating it.
func PointID(chunkHash string) uint64 {
	sum := md5.Sum([]byte(chunkHash))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, maxPointID).Uint64()
}

// Upsert stores chunks with their embeddings. vectors must be parallel to
// chunks. Errors are returned to the caller: a failed upsert means the index
// no longer mirrors the source content and ingestion has to know.
func (ix *Index) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectorindex: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(PointID(chunk.Hash)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":        chunk.Content,
				"source_file": chunk.SourceFile,
				"chunk_hash":  chunk.Hash,
			}),
		})
	}
	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upserting %d points: %w", len(points), err)
	}
	return nil
}

// Search returns at most limit nearest neighbours by cosine similarity in
// descending score order. It never returns an error: an empty collection, a
// rejected query vector, or an unreachable index all degrade to an empty
// result, logged for operational visibility.
func (ix *Index) Search(ctx context.Context, vector []float32, limit int) []models.ScoredChunk {
	points, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		log.Error().Err(err).Str("collection", ix.collection).Msg("Vector search failed")
		return nil
	}

	results := make([]models.ScoredChunk, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		text := payload["text"].GetStringValue()
		source := payload["source_file"].GetStringValue()
		if text == "" || source == "" {
			log.Warn().Uint64("point_id", point.GetId().GetNum()).Msg("Dropping point with incomplete payload")
			continue
		}
		results = append(results, models.ScoredChunk{
			Score:      point.GetScore(),
			Text:       text,
			SourceFile: source,
		})
	}
	return results
}
