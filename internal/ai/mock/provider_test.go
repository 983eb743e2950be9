package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/equiplens/internal/ai"
	"github.com/kiranshivaraju/equiplens/internal/ai/mock"
	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prompt(p string) models.CompletionRequest {
	return models.CompletionRequest{Prompt: p, MaxTokens: 100}
}

// --- NewMockProvider ---

func TestNewMockProvider_Name(t *testing.T) {
	p := mock.NewMockProvider()
	assert.Equal(t, "mock", p.Name())
}

func TestNewMockProvider_RoutesByRequestedKey(t *testing.T) {
	p := mock.NewMockProvider()
	ctx := context.Background()

	tests := []struct {
		prompt string
		want   string
	}{
		{`Return {"executive_summary": "..."}`, mock.SummaryJSON},
		{`Return {"optimizations": []}`, mock.OptimizationsJSON},
		{`Return {"suggestions": []}`, mock.SuggestionsJSON},
		{"Format as a numbered list.", mock.ExplanationText},
	}
	for _, tt := range tests {
		got, err := p.Complete(ctx, prompt(tt.prompt))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	assert.Equal(t, len(tests), p.Calls())
}

// --- NewStaticProvider ---

func TestNewStaticProvider(t *testing.T) {
	p := mock.NewStaticProvider("not json")
	got, err := p.Complete(context.Background(), prompt("anything"))
	require.NoError(t, err)
	assert.Equal(t, "not json", got)
}

// --- NewFailingProvider ---

func TestNewFailingProvider_ReturnsError(t *testing.T) {
	expectedErr := errors.New("provider down")
	p := mock.NewFailingProvider(expectedErr)

	_, err := p.Complete(context.Background(), prompt("x"))
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, "mock-failing", p.Name())
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider_BlocksUntilCancelled(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Complete(ctx, prompt("x"))
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

// --- NewPanickingProvider ---

func TestNewPanickingProvider_Panics(t *testing.T) {
	p := mock.NewPanickingProvider()
	assert.Panics(t, func() {
		_, _ = p.Complete(context.Background(), prompt("x"))
	})
}

// --- Custom func ---

func TestMockProvider_NilFunc(t *testing.T) {
	p := &mock.MockProvider{Name_: "empty"}
	got, err := p.Complete(context.Background(), prompt("x"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, p.Calls())
}
