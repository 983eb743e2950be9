// Package providers builds the configured AI provider and insight generator.
package providers

import (
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/equiplens/internal/ai"
	"github.com/kiranshivaraju/equiplens/internal/ai/anthropic"
	"github.com/kiranshivaraju/equiplens/internal/ai/gemini"
	"github.com/kiranshivaraju/equiplens/internal/ai/ollama"
	"github.com/kiranshivaraju/equiplens/internal/ai/openai"
	"github.com/kiranshivaraju/equiplens/internal/ai/vllm"
	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "gemini":
		return gemini.NewProvider(cfg.Gemini), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic, gemini", cfg.Provider)
	}
}

// NewGenerator returns the live generator for the configured provider, or
// the rule-based fallback when AI is disabled.
func NewGenerator(cfg config.AIConfig, logger *slog.Logger) (models.InsightGenerator, error) {
	if !cfg.Enabled() {
		logger.Info("no AI provider configured, using rule-based insights")
		return ai.NewFallbackGenerator(), nil
	}

	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("AI provider configured", "provider", p.Name())

	return ai.NewLiveGenerator(p,
		ai.WithTimeout(cfg.InferenceTimeout()),
		ai.WithMaxRetries(cfg.MaxRetries),
		ai.WithLogger(logger),
	), nil
}
