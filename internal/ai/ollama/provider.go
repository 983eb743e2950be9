// Package ollama connects to a local Ollama server through its
// OpenAI-compatible endpoint.
package ollama

import (
	"strings"

	"github.com/kiranshivaraju/equiplens/internal/ai/openai"
	"github.com/kiranshivaraju/equiplens/internal/config"
)

// NewProvider returns an AI provider backed by Ollama's /v1 API.
func NewProvider(cfg config.OllamaConfig) *openai.Provider {
	return openai.NewCompatible("ollama", strings.TrimSuffix(cfg.BaseURL, "/")+"/v1", "ollama", cfg.Model)
}
