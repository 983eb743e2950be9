// Package openai implements models.AIProvider for OpenAI and every server
// exposing the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kiranshivaraju/equiplens/internal/ai"
	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Provider implements models.AIProvider using the chat completions API.
type Provider struct {
	client *goopenai.Client
	name   string
	model  string
}

// NewProvider creates a provider for api.openai.com or a custom base URL.
func NewProvider(cfg config.OpenAIConfig) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model)
}

// NewCompatible creates a provider for any OpenAI-compatible endpoint.
// An empty baseURL keeps the library default.
func NewCompatible(name, baseURL, apiKey, model string) *Provider {
	clientCfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &Provider{
		client: goopenai.NewClientWithConfig(clientCfg),
		name:   name,
		model:  model,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Model() string { return p.model }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", p.classify(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: %s returned no content", ai.ErrInvalidResponse, p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return ai.ClassifyStatus(p.name, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return ai.ClassifyStatus(p.name, reqErr.HTTPStatusCode, reqErr.Error())
	}
	return ai.ClassifyTransportError(p.name, err)
}

var _ models.AIProvider = (*Provider)(nil)
