package llmservice

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"textbook-rag/internal/nav"
)

func navigationTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "navigate_to_page",
				Description: "Redirect the student to a course page, optionally scrolled to a section.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"destination": map[string]any{
							"type":        "string",
							"description": "Course destination, e.g. 'week 1' or 'module 1'.",
						},
						"section": map[string]any{
							"type":        "string",
							"description": "Optional section anchor within the page.",
						},
					},
					"required": []string{"destination"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "list_available_pages",
				Description: "List every course page the student can be navigated to.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
	}
}

func executeTool(call llms.ToolCall) string {
	if call.FunctionCall == nil {
		return `{"error": "missing function call"}`
	}
	switch call.FunctionCall.Name {
	case "navigate_to_page":
		var args struct {
			Destination string `json:"destination"`
			Section     string `json:"section"`
		}
		if err := json.Unmarshal([]byte(call.FunctionCall.Arguments), &args); err != nil {
			log.Warn().Err(err).Msg("Malformed navigate_to_page arguments")
			return `{"error": "malformed arguments"}`
		}
		return nav.Navigate(args.Destination, args.Section)
	case "list_available_pages":
		return nav.ListPages()
	default:
		return fmt.Sprintf(`{"error": "unknown tool %s"}`, call.FunctionCall.Name)
	}
}
