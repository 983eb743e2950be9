package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/kiranshivaraju/equiplens/internal/ai"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Canned responses returned by NewMockProvider, chosen by the JSON key the
// prompt asks for.
const (
	SuggestionsJSON   = `{"suggestions":[{"title":"Flow vs Pressure","description":"Check flow response to pressure","chart_type":"scatter","x_axis":"Flowrate","y_axis":"Pressure","priority":"high","reasoning":"Strong linear trend"}]}`
	SummaryJSON       = `{"executive_summary":"Mock executive summary.","risk_level":"low","key_metrics":[{"metric":"Average Pressure","value":"5.2","status":"normal"}],"recommendations":["Keep monitoring"]}`
	ExplanationText   = "1. Mock sensor fault.\n2. Mock process upset.\n3. Mock wear."
	OptimizationsJSON = `{"optimizations":[{"title":"Tune pumps","description":"Mock optimization","expected_benefit":"Lower energy","difficulty":"easy","priority":"high"}]}`
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)

	calls atomic.Int64
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	m.calls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// NewMockProvider returns a MockProvider that answers each insight prompt
// with a valid canned response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (string, error) {
			switch {
			case strings.Contains(req.Prompt, `"executive_summary"`):
				return SummaryJSON, nil
			case strings.Contains(req.Prompt, `"optimizations"`):
				return OptimizationsJSON, nil
			case strings.Contains(req.Prompt, `"suggestions"`):
				return SuggestionsJSON, nil
			default:
				return ExplanationText, nil
			}
		},
	}
}

// NewStaticProvider returns a MockProvider that always answers with text.
func NewStaticProvider(text string) *MockProvider {
	return &MockProvider{
		Name_: "mock-static",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return text, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// NewPanickingProvider returns a MockProvider whose Complete panics.
func NewPanickingProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-panic",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			panic("provider exploded")
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
