package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"textbook-rag/internal/config"
	"textbook-rag/internal/models"
)

// defaultHistoryTurns caps how much prior conversation is replayed into the
// prompt when no limit is configured.
const defaultHistoryTurns = 10

// Generator issues a single chat completion over the grounding context. The
// underlying client is created once and reused by concurrent invocations.
// Model failures never escape Generate: they become a user-facing fallback
// string so the answer channel stays the only delivery path.
type Generator struct {
	llm          llms.Model
	model        string
	tools        []llms.Tool
	historyLimit int
}

func NewGenerator(cfg *config.OpenAIConfig, historyLimit int) (*Generator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.InferenceModel),
	)
	if err != nil {
		return nil, err
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryTurns
	}
	return &Generator{
		llm:          llm,
		model:        cfg.InferenceModel,
		tools:        navigationTools(),
		historyLimit: historyLimit,
	}, nil
}

// Generate builds the system instruction from the grounding context, replays
// capped history, and requests one completion. Fragments are forwarded to
// onFragment as the model streams them; the full answer text is returned for
// logging. Never returns an error: failures come back as fallback text.
func (g *Generator) Generate(ctx context.Context, groundingContext, userMessage string, history []models.ConversationTurn, onFragment func(string)) string {
	messages := buildMessages(groundingContext, userMessage, history, g.historyLimit)

	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if onFragment != nil && len(chunk) > 0 {
				onFragment(string(chunk))
			}
			return ctx.Err()
		}),
	}
	if len(g.tools) > 0 {
		opts = append(opts, llms.WithTools(g.tools))
	}

	resp, err := g.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		log.Error().Err(err).Str("model", g.model).Msg("Completion request failed")
		return models.ErrorFallbackPrefix + err.Error()
	}
	if len(resp.Choices) == 0 {
		return models.ErrorFallbackPrefix + "the model returned no choices"
	}

	choice := resp.Choices[0]
	if len(choice.ToolCalls) > 0 {
		return g.resolveToolCalls(ctx, messages, choice.ToolCalls)
	}
	return choice.Content
}

// resolveToolCalls executes the requested navigation tools and feeds their
// results back for one follow-up completion. Tool use is optional: any
// failure here still produces answer text.
func (g *Generator) resolveToolCalls(ctx context.Context, messages []llms.MessageContent, calls []llms.ToolCall) string {
	assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	for _, call := range calls {
		assistant.Parts = append(assistant.Parts, call)
	}
	messages = append(messages, assistant)

	for _, call := range calls {
		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.FunctionCall.Name,
				Content:    executeTool(call),
			}},
		})
	}

	resp, err := g.llm.GenerateContent(ctx, messages)
	if err != nil {
		log.Error().Err(err).Str("model", g.model).Msg("Tool follow-up completion failed")
		return models.ErrorFallbackPrefix + err.Error()
	}
	if len(resp.Choices) == 0 {
		return models.ErrorFallbackPrefix + "the model returned no choices"
	}
	return resp.Choices[0].Content
}

func buildMessages(groundingContext, userMessage string, history []models.ConversationTurn, historyLimit int) []llms.MessageContent {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryTurns
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem,
		fmt.Sprintf(models.SystemPromptTemplate, groundingContext)))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, userMessage))
	return messages
}
