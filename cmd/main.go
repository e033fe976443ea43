package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/config"
	"textbook-rag/internal/db"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/ingest"
	"textbook-rag/internal/llmservice"
	"textbook-rag/internal/rag"
	"textbook-rag/internal/retriever"
	"textbook-rag/internal/vectorindex"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	ingestPath := flag.String("ingest", "", "Path to a content file or directory to index")
	query := flag.String("query", "", "Question to answer from the textbook")
	recreate := flag.Bool("recreate", false, "Drop and recreate the vector collection before ingesting (destructive)")
	dryRun := flag.Bool("dry-run", false, "Parse and chunk only, do not embed or store")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	switch {
	case *ingestPath != "" && *query != "":
		log.Fatal().Msg("Please provide either -ingest or -query, but not both")
	case *ingestPath != "":
		runIngest(ctx, cfg, *ingestPath, *recreate, *dryRun)
	case *query != "":
		runQuery(ctx, cfg, *query)
	default:
		log.Fatal().Msg("Please provide a content path using -ingest or a question using -query")
	}
}

func runIngest(ctx context.Context, cfg *config.Config, path string, recreate, dryRun bool) {
	embedder, err := embedding.NewEmbedder(&cfg.OpenAI)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	index, err := vectorindex.New(&cfg.Qdrant)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to vector index")
	}
	defer index.Close()

	if !dryRun {
		if recreate {
			if err := index.Recreate(ctx); err != nil {
				log.Fatal().Err(err).Msg("Error recreating collection")
			}
		} else if err := index.EnsureCollection(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error ensuring collection")
		}
	}

	ingestor := ingest.New(embedder, index, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, dryRun)
	chunks, err := ingestor.IngestPath(ctx, path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting content")
	}
	log.Info().Int("chunks", chunks).Msg("Ingestion complete")
}

func runQuery(ctx context.Context, cfg *config.Config, query string) {
	embedder, err := embedding.NewEmbedder(&cfg.OpenAI)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	index, err := vectorindex.New(&cfg.Qdrant)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to vector index")
	}
	defer index.Close()

	generator, err := llmservice.NewGenerator(&cfg.OpenAI, cfg.RAG.HistoryLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generator")
	}

	dbConn := db.ConnectDB(&cfg.Database)
	store := db.NewStore(dbConn)
	defer store.Close()
	if err := db.InitDB(ctx, dbConn); err != nil {
		log.Warn().Err(err).Msg("Could not ensure database tables, continuing without persistence")
		store = nil
	}

	pipeline := rag.NewPipeline(retriever.New(embedder, index), generator, chatLogger(store), cfg.RAG.TopK)

	req := rag.Request{UserMessage: query}
	if store != nil {
		history, err := store.RecentHistory(ctx, cfg.RAG.HistoryLimit)
		if err != nil {
			log.Warn().Err(err).Msg("Could not load chat history")
		} else {
			req.History = history
		}
	}

	for fragment := range pipeline.Answer(ctx, req) {
		fmt.Print(fragment)
	}
	fmt.Println()
}

// chatLogger keeps a nil *db.Store from becoming a non-nil interface.
func chatLogger(store *db.Store) rag.ChatLogger {
	if store == nil {
		return nil
	}
	return store
}
