package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultOpenAIBase     = "https://api.openai.com/v1"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultInferenceModel = "gpt-4o-mini"
	defaultQdrantPort     = 6334
	defaultCollection     = "textbook_embeddings"

	// DefaultVectorSize is the dimensionality of text-embedding-3-small.
	// Every vector in the collection and every query vector must match it.
	DefaultVectorSize = 1536

	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 5
	defaultHistoryLimit = 10
)

type Config struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Database DatabaseConfig `yaml:"database"`
	RAG      RAGConfig      `yaml:"rag"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	InferenceModel string `yaml:"inference_model"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vector_size"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
	HistoryLimit int `yaml:"history_limit"`
}

// LoadConfig reads the YAML config at path, expanding ${ENV} references so
// secrets can stay out of the file. Defaults are applied before validation;
// a config that fails validation must abort startup.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBase
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = defaultEmbeddingModel
	}
	if c.OpenAI.InferenceModel == "" {
		c.OpenAI.InferenceModel = defaultInferenceModel
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = defaultQdrantPort
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = defaultCollection
	}
	if c.Qdrant.VectorSize == 0 {
		c.Qdrant.VectorSize = DefaultVectorSize
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.HistoryLimit == 0 {
		c.RAG.HistoryLimit = defaultHistoryLimit
	}
}

// Validate reports the first missing required setting. Running with partial
// external-service configuration is worse than refusing to start.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("config: openai.api_key is required")
	}
	if c.Qdrant.Host == "" {
		return fmt.Errorf("config: qdrant.host is required")
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("config: qdrant.collection is required")
	}
	if c.Qdrant.VectorSize <= 0 {
		return fmt.Errorf("config: qdrant.vector_size must be positive, got %d", c.Qdrant.VectorSize)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	return nil
}
