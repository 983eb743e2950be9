package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/equiplens/internal/ai"
	"github.com/kiranshivaraju/equiplens/internal/ai/openai"
	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *openai.Provider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewProvider(config.GeminiConfig{BaseURL: ts.URL + "/v1beta/openai/", APIKey: "gm-test", Model: "gemini-test"})
}

func sampleRequest() models.CompletionRequest {
	return models.CompletionRequest{System: "be brief", Prompt: "explain", MaxTokens: 256, Temperature: 0.7}
}

func TestNewProvider_Identity(t *testing.T) {
	p := NewProvider(config.GeminiConfig{APIKey: "gm-test", Model: "gemini-2.5-flash", BaseURL: "https://example.invalid/v1beta/openai/"})
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, "gemini-2.5-flash", p.Model())
}

func TestComplete_ChatCompletions(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/openai/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer gm-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gemini-test", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "be brief", body.Messages[0].Content)
		assert.Equal(t, "explain", body.Messages[1].Content)
		assert.Equal(t, 256, body.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gemini-test",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"1. Sensor drift"},"finish_reason":"stop"}]}`))
	})

	text, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "1. Sensor drift", text)
}

func TestComplete_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"rate limited is retryable", http.StatusTooManyRequests},
		{"server error is retryable", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := p.Complete(context.Background(), sampleRequest())
			assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
		})
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})
	_, err := p.Complete(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

func TestComplete_Unreachable(t *testing.T) {
	p := NewProvider(config.GeminiConfig{BaseURL: "http://127.0.0.1:1", APIKey: "k", Model: "m"})
	_, err := p.Complete(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}
