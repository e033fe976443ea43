package models

const (
	// NoContentMarker is what the assembler produces when retrieval found
	// nothing; the generator must still answer without grounding.
	NoContentMarker = "No relevant content found."

	ContextHeader    = "TEXTBOOK CONTENT:\n\n"
	ContextSeparator = "---\n"

	// ErrorFallbackPrefix prefixes the user-facing text produced when the
	// completion endpoint fails.
	ErrorFallbackPrefix = "I encountered an error: "
)

var (
	SystemPromptTemplate = `You are an expert AI Robotics tutor.
Use the following textbook content to answer the student's question accurately.

%s

Answer concisely and helpfully. If the textbook content does not cover the
question, say so before answering from general knowledge.`
)
