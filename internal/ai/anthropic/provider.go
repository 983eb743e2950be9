// Package anthropic implements models.AIProvider using the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	goanthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/kiranshivaraju/equiplens/internal/ai"
	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Provider implements models.AIProvider using Anthropic.
type Provider struct {
	client *goanthropic.Client
	model  string
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{
		client: goanthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	resp, err := p.client.CreateMessages(ctx, goanthropic.MessagesRequest{
		Model:     goanthropic.Model(p.model),
		MaxTokens: req.MaxTokens,
		Messages: []goanthropic.Message{
			{Role: goanthropic.RoleUser, Content: []goanthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return "", ai.ClassifyTransportError(p.Name(), err)
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: anthropic returned no text content", ai.ErrInvalidResponse)
	}
	return text, nil
}

func extractText(resp goanthropic.MessagesResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	return b.String()
}

var _ models.AIProvider = (*Provider)(nil)
