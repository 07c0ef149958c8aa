// Package llm provides clients for the matcher's embedding and LLM backends.
package llm

import "context"

// ChatClient is the interface for scoring-oriented chat completions.
// Use it for dependency injection to enable mocking in tests.
type ChatClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// EmbeddingClient is the interface for embedding generation.
type EmbeddingClient interface {
	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string, model string) ([][]float32, error)

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// ClientFactory builds clients from matcher settings. The matcher selects a
// backend per request; nothing is cached globally.
type ClientFactory interface {
	CreateChatClient(cfg *Config) (ChatClient, error)
	CreateEmbeddingClient(cfg *Config) (EmbeddingClient, error)
}

// Ensure the concrete clients satisfy the interfaces at compile time.
var (
	_ ChatClient      = (*Client)(nil)
	_ EmbeddingClient = (*Client)(nil)
	_ ChatClient      = (*AnthropicClient)(nil)
)
