package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/helper"
	"textbook-rag/internal/models"
	"textbook-rag/internal/retriever"
)

const chatLogTimeout = 5 * time.Second

// Retriever returns ranked chunks for a query, degrading to empty on failure.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) []models.ScoredChunk
}

// Generator produces the answer text for a grounded prompt, streaming
// fragments through onFragment and returning the full text. Implementations
// must not return errors; failures become user-facing fallback text.
type Generator interface {
	Generate(ctx context.Context, groundingContext, userMessage string, history []models.ConversationTurn, onFragment func(string)) string
}

// ChatLogger records a finished (query, answer, sources) interaction.
type ChatLogger interface {
	LogInteraction(ctx context.Context, userMessage, answer string, sources []models.ScoredChunk) error
}

// Request is one pipeline invocation. History and the optional page/user
// context are caller-supplied and never mutated.
type Request struct {
	UserMessage  string
	History      []models.ConversationTurn
	SelectedText string
	UserID       string
	CurrentPage  string
}

// Pipeline is the externally visible entry point: retrieve, assemble,
// generate. It holds no per-request state; concurrent invocations share only
// the injected client handles.
type Pipeline struct {
	retriever Retriever
	generator Generator
	chatLog   ChatLogger // optional; nil disables interaction logging
	topK      int
}

func NewPipeline(r Retriever, g Generator, chatLog ChatLogger, topK int) *Pipeline {
	if topK <= 0 {
		topK = retriever.DefaultLimit
	}
	return &Pipeline{retriever: r, generator: g, chatLog: chatLog, topK: topK}
}

// Answer runs the pipeline for one request and returns the answer as a lazy,
// finite sequence of text fragments. The channel is closed when generation
// completes; it is not restartable. Cancelling ctx abandons in-flight
// provider calls and stops fragment delivery.
func (p *Pipeline) Answer(ctx context.Context, req Request) <-chan string {
	out := make(chan string, 1)

	go func() {
		defer close(out)

		logger := log.With().Str("request_id", helper.NewRequestID()).Logger()
		if req.UserID != "" {
			logger = logger.With().Str("user_id", req.UserID).Logger()
		}

		query := req.UserMessage
		if req.SelectedText != "" {
			query = req.SelectedText + "\n\n" + req.UserMessage
		}

		results := p.retriever.Retrieve(ctx, query, p.topK)
		logger.Debug().Int("results", len(results)).Str("page", req.CurrentPage).Msg("Retrieval complete")

		groundingContext := AssembleContext(results)

		userMessage := req.UserMessage
		if req.SelectedText != "" {
			userMessage = fmt.Sprintf("The student highlighted this passage:\n%s\n\nQuestion: %s", req.SelectedText, req.UserMessage)
		}

		streamed := false
		emit := func(fragment string) {
			select {
			case out <- fragment:
				streamed = true
			case <-ctx.Done():
			}
		}

		answer := p.generator.Generate(ctx, groundingContext, userMessage, req.History, emit)
		if !streamed {
			if answer == "" {
				// An empty completion still owes the caller one fragment.
				answer = models.ErrorFallbackPrefix + "the model returned an empty answer"
			}
			emit(answer)
		}

		p.logInteraction(logger, req.UserMessage, answer, results)
	}()

	return out
}

// logInteraction persists the finished exchange. Best-effort: it runs
// detached with its own deadline and a failure only produces a log line,
// never a failed answer.
func (p *Pipeline) logInteraction(logger zerolog.Logger, userMessage, answer string, sources []models.ScoredChunk) {
	if p.chatLog == nil || answer == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), chatLogTimeout)
		defer cancel()
		if err := p.chatLog.LogInteraction(ctx, userMessage, answer, sources); err != nil {
			logger.Warn().Err(err).Msg("Chat history write failed")
		}
	}()
}
