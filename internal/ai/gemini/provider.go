// Package gemini connects to Gemini through its OpenAI-compatible endpoint.
package gemini

import (
	"github.com/kiranshivaraju/equiplens/internal/ai/openai"
	"github.com/kiranshivaraju/equiplens/internal/config"
)

// NewProvider returns an AI provider backed by Gemini's /openai API.
func NewProvider(cfg config.GeminiConfig) *openai.Provider {
	return openai.NewCompatible("gemini", cfg.BaseURL, cfg.APIKey, cfg.Model)
}
