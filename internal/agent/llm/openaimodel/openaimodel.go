// Package openaimodel implements agent.ChatModel against any
// OpenAI-compatible chat completions endpoint.
package openaimodel

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/parley/parley/internal/agent"
)

// Config configures a Model.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // empty uses the default OpenAI endpoint
	MaxTokens   int
	Temperature float32
}

// Model adapts an openai.Client to agent.ChatModel.
type Model struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New constructs a Model from cfg.
func New(cfg Config) *Model {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Model{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Complete implements agent.ChatModel: prompt becomes the system message,
// history becomes the turn-by-turn conversation, role-mapped by the caller.
func (m *Model) Complete(ctx context.Context, prompt string, history []agent.RoleMessage) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		})
	}
	for _, h := range history {
		role := openai.ChatMessageRoleUser
		if h.Role == agent.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", agent.Retryable(fmt.Errorf("openaimodel: create chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", agent.Retryable(fmt.Errorf("openaimodel: empty response"))
	}
	return resp.Choices[0].Message.Content, nil
}

var _ agent.ChatModel = (*Model)(nil)
