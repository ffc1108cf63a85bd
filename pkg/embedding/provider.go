// Package embedding provides the embedding-provider client and node-level
// caching used to populate the Store's embedding table (spec.md's
// Embeddings row). Model weights and inference themselves are out of
// scope; this package only talks HTTP to a local or remote provider.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Provider generates vector embeddings from text. Implementations must be
// safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Config selects and configures an HTTP-backed Provider. The zero value
// is not usable; build one with DefaultOllamaConfig or
// DefaultOpenAIConfig and override fields.
type Config struct {
	Kind       string // "ollama" or "openai"
	APIURL     string
	APIPath    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// DefaultOllamaConfig targets a local Ollama instance running
// mxbai-embed-large, the same default the teacher's embed package ships.
func DefaultOllamaConfig() Config {
	return Config{
		Kind:       "ollama",
		APIURL:     "http://localhost:11434",
		APIPath:    "/api/embeddings",
		Model:      "mxbai-embed-large",
		Dimensions: 1024,
		Timeout:    30 * time.Second,
	}
}

// DefaultOpenAIConfig targets OpenAI's text-embedding-3-small.
func DefaultOpenAIConfig(apiKey string) Config {
	return Config{
		Kind:       "openai",
		APIURL:     "https://api.openai.com",
		APIPath:    "/v1/embeddings",
		APIKey:     apiKey,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// NewProvider builds a Provider for cfg.Kind.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Kind {
	case "ollama":
		return newHTTPProvider(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return newHTTPProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Kind)
	}
}
