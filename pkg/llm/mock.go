package llm

import "context"

// MockChatClient is a test double for ChatClient using function fields.
type MockChatClient struct {
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)
	Model                string
}

func (m *MockChatClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

func (m *MockChatClient) GetModel() string {
	if m.Model != "" {
		return m.Model
	}
	return "mock-model"
}

// MockEmbeddingClient is a test double for EmbeddingClient.
type MockEmbeddingClient struct {
	CreateEmbeddingsFunc func(ctx context.Context, inputs []string, model string) ([][]float32, error)
	Endpoint             string
}

func (m *MockEmbeddingClient) CreateEmbeddings(ctx context.Context, inputs []string, model string) ([][]float32, error) {
	if m.CreateEmbeddingsFunc != nil {
		return m.CreateEmbeddingsFunc(ctx, inputs, model)
	}
	return make([][]float32, len(inputs)), nil
}

func (m *MockEmbeddingClient) GetEndpoint() string {
	if m.Endpoint != "" {
		return m.Endpoint
	}
	return "mock://embeddings"
}

// MockFactory returns the canned clients regardless of config.
type MockFactory struct {
	Chat      ChatClient
	Embedding EmbeddingClient
	ChatErr   error
	EmbedErr  error
}

func (m *MockFactory) CreateChatClient(cfg *Config) (ChatClient, error) {
	if m.ChatErr != nil {
		return nil, m.ChatErr
	}
	return m.Chat, nil
}

func (m *MockFactory) CreateEmbeddingClient(cfg *Config) (EmbeddingClient, error) {
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	return m.Embedding, nil
}

var (
	_ ChatClient      = (*MockChatClient)(nil)
	_ EmbeddingClient = (*MockEmbeddingClient)(nil)
	_ ClientFactory   = (*MockFactory)(nil)
)
