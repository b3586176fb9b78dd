// Package openai generates answers through an OpenAI-compatible chat
// completion endpoint such as OpenRouter.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"lexa/internal/domain"
	"lexa/internal/logging"
	"lexa/internal/retry"
)

// Config configures the chat completion client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds every single attempt.
	Timeout     time.Duration
	MaxAttempts int
	// Retry overrides the default schedule; MaxAttempts still applies.
	Retry  *retry.Policy
	Logger *zap.Logger
}

// Client implements domain.Generator.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	policy      retry.Policy
	log         *zap.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing generation API key", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "mistralai/mixtral-8x7b-instruct"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	policy := retry.DefaultPolicy()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		policy:      policy.WithMaxAttempts(cfg.MaxAttempts),
		log:         logging.OrNop(cfg.Logger),
	}, nil
}

// Generate sends prompt as a single user message and returns the trimmed
// completion. Every failure wraps domain.ErrGenerationFailed.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	var answer string
	err := retry.Do(ctx, c.policy, c.log, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		resp, err := c.client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in response")
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		if answer == "" {
			return errors.New("empty completion")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrGenerationFailed, c.model, err)
	}
	c.log.Debug("answer generated",
		zap.String("model", c.model),
		zap.Int("chars", len(answer)),
		zap.Duration("took", time.Since(start)))
	return answer, nil
}
