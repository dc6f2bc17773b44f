// Package generation executes resilient calls against the text-generation
// backend: a primary model attempt, a fallback attempt on failure, bounded
// waits, and classified errors. It never touches session storage.
package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/spencerpeyrot/agent-asj/internal/config"
	"github.com/spencerpeyrot/agent-asj/internal/domain"
	"github.com/spencerpeyrot/agent-asj/internal/llm"
	"github.com/spencerpeyrot/agent-asj/internal/logger"
)

// Client tries an ordered list of model attempts against one backend.
// Model identifiers, temperature and max tokens are fixed at construction;
// callers only supply messages.
type Client struct {
	backend     llm.Client
	models      []string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// New builds a generation client with the primary/fallback model order from
// config. A missing fallback model leaves a single attempt.
func New(backend llm.Client, cfg config.LLMConfig) *Client {
	models := []string{cfg.Model}
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model {
		models = append(models, cfg.FallbackModel)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		backend:     backend,
		models:      models,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
	}
}

// Generate runs the messages through each model in order and returns the
// first usable text. Empty content counts as a failed attempt. When every
// attempt fails, the returned error is classified as a generation failure
// and carries the last underlying cause.
func (c *Client) Generate(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	var lastErr error
	for _, model := range c.models {
		text, err := c.attempt(ctx, model, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logger.L.Warn("generation attempt failed", "model", model, "error", err)
	}
	if lastErr == nil {
		lastErr = errors.New("no models configured")
	}
	return "", domain.Generationf(lastErr, "text generation failed after %d attempt(s)", len(c.models))
}

func (c *Client) attempt(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.backend.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("backend returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("backend returned empty content")
	}
	return text, nil
}
