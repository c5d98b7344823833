package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient generates SQL through the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// AnthropicConfig holds configuration for creating an Anthropic client.
type AnthropicConfig struct {
	Model  string // Model name, e.g., "claude-sonnet-4-5-20250929"
	APIKey string
}

// NewAnthropicClient creates an Anthropic SQL generation client.
func NewAnthropicClient(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("anthropic"),
	}, nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

// GenerateSQL asks the model to translate the question into one SELECT.
func (c *AnthropicClient) GenerateSQL(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		System:    sqlSystemPrompt,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(buildPrompt(req)),
		},
	})
	if err != nil {
		c.logger.Warn("messages request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text = *block.Text
			break
		}
	}

	sql := extractSQL(text)
	if sql == "" {
		return nil, fmt.Errorf("model returned empty statement")
	}

	c.logger.Debug("messages request ok",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		SQL:        sql,
		Confidence: responseConfidence(resp.StopReason == anthropic.MessagesStopReasonEndTurn),
		Model:      c.model,
	}, nil
}
