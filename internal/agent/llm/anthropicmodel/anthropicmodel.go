// Package anthropicmodel implements agent.ChatModel against the Anthropic
// Messages API.
package anthropicmodel

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parley/parley/internal/agent"
)

const defaultMaxTokens = 1024

// Config configures a Model.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// Model adapts an anthropic.Client to agent.ChatModel.
type Model struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// New constructs a Model from cfg.
func New(cfg Config) *Model {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return &Model{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Complete implements agent.ChatModel: prompt becomes the system prompt,
// history becomes the turn-by-turn conversation, role-mapped by the caller.
func (m *Model) Complete(ctx context.Context, prompt string, history []agent.RoleMessage) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, h := range history {
		block := anthropic.NewTextBlock(h.Content)
		if h.Role == agent.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	if len(messages) == 0 {
		return "", agent.Retryable(fmt.Errorf("anthropicmodel: no messages to send"))
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.model),
		Messages:    messages,
		MaxTokens:   m.maxTokens,
		Temperature: anthropic.Float(m.temperature),
	}
	if prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt}}
	}

	reply, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", agent.Retryable(fmt.Errorf("anthropicmodel: messages.new: %w", err))
	}

	var out string
	for _, block := range reply.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

var _ agent.ChatModel = (*Model)(nil)
