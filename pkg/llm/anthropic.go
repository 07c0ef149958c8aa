package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient adapts the Anthropic Messages API to the ChatClient
// interface. Only online mode reaches it; offline mode always routes through
// the OpenAI-compatible Client.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicClient creates a chat client backed by the Anthropic API.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm"),
	}, nil
}

// GenerateResponse generates a chat completion response.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	temp := float32(temperature)

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		System:      systemMessage,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					{Type: "text", Text: &prompt},
				},
			},
		},
	})
	if err != nil {
		c.logger.Warn("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text += *block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}

	c.logger.Debug("LLM request completed",
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}
