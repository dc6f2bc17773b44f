// Package llm wraps construction of the chat-completion backend client.
package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/spencerpeyrot/agent-asj/internal/config"
)

// NewClient creates the OpenAI-compatible backend client from config.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
