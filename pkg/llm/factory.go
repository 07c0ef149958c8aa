package llm

import "go.uber.org/zap"

// DefaultFactory builds real clients from a per-request config. Matcher
// settings change at runtime, so clients are constructed on demand rather
// than wired once at startup.
type DefaultFactory struct {
	logger *zap.Logger
}

// NewFactory creates the standard client factory.
func NewFactory(logger *zap.Logger) *DefaultFactory {
	return &DefaultFactory{logger: logger}
}

// CreateChatClient builds a chat client for the configured provider.
func (f *DefaultFactory) CreateChatClient(cfg *Config) (ChatClient, error) {
	if cfg.Provider == "anthropic" {
		return NewAnthropicClient(cfg, f.logger)
	}
	return NewClient(cfg, f.logger)
}

// CreateEmbeddingClient builds an embedding client. Embeddings always go
// through the OpenAI-compatible wire protocol.
func (f *DefaultFactory) CreateEmbeddingClient(cfg *Config) (EmbeddingClient, error) {
	return NewClient(cfg, f.logger)
}

var _ ClientFactory = (*DefaultFactory)(nil)
