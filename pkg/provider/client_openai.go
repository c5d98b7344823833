package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient generates SQL through an OpenAI-compatible chat endpoint.
// This covers api.openai.com as well as vLLM and other compatible servers
// when BaseURL points at them.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// OpenAIConfig holds configuration for creating an OpenAI-compatible client.
type OpenAIConfig struct {
	BaseURL string // Optional. Defaults to api.openai.com.
	Model   string // Model name, e.g., "gpt-4o"
	APIKey  string // Optional for local endpoints
}

// NewOpenAIClient creates an OpenAI-compatible SQL generation client.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("openai"),
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// GenerateSQL asks the model to translate the question into one SELECT.
func (c *OpenAIClient) GenerateSQL(ctx context.Context, req Request) (*Result, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sqlSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("chat completion failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	sql := extractSQL(resp.Choices[0].Message.Content)
	if sql == "" {
		return nil, fmt.Errorf("model returned empty statement")
	}

	c.logger.Debug("chat completion ok",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		SQL:        sql,
		Confidence: responseConfidence(resp.Choices[0].FinishReason == openai.FinishReasonStop),
		Model:      c.model,
	}, nil
}

// responseConfidence maps a clean stop versus a truncated or odd finish into
// a coarse confidence value. The engine treats this as advisory only.
func responseConfidence(cleanFinish bool) float64 {
	if cleanFinish {
		return 0.9
	}
	return 0.6
}
