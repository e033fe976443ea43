package models

// Chunk is a unit of indexed textbook content. Chunks are produced by the
// ingestion pipeline and are immutable once stored; the Hash is the identity
// key the vector index derives its point ids from.
type Chunk struct {
	Content    string `json:"content"`
	SourceFile string `json:"source_file"`
	Hash       string `json:"chunk_hash"`
}

// ScoredChunk is a single retrieval result entry: the stored chunk text with
// the cosine similarity score the index assigned to it for the current query.
type ScoredChunk struct {
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	SourceFile string  `json:"source_file"`
}

// ConversationTurn is one prior message in the chat, supplied by the caller
// as generation context. The core never mutates history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
