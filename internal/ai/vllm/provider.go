// Package vllm connects to a vLLM server through its OpenAI-compatible
// endpoint.
package vllm

import (
	"strings"

	"github.com/kiranshivaraju/equiplens/internal/ai/openai"
	"github.com/kiranshivaraju/equiplens/internal/config"
)

// NewProvider returns an AI provider backed by vLLM's /v1 API.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	return openai.NewCompatible("vllm", strings.TrimSuffix(cfg.BaseURL, "/")+"/v1", "EMPTY", cfg.Model)
}
