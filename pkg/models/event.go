package models

import "github.com/google/uuid"

const (
	EventProfilingComplete = "profiling_complete"
	EventAnalysisComplete  = "analysis_complete"
	EventCompleted         = DatasetStatusCompleted
	EventFailed            = DatasetStatusFailed
)

// Event is a phase-completion notification. Payload holds the partial
// result of the phase that produced the event.
type Event struct {
	DatasetID uuid.UUID `json:"dataset_id"`
	Status    string    `json:"status"`
	Payload   any       `json:"payload,omitempty"`
}

type ProfilingEventPayload struct {
	ColumnProfile ColumnProfile `json:"column_profile"`
	Suggestions   SuggestionSet `json:"ai_suggestions"`
}

type AnalysisEventPayload struct {
	Summary       StatisticalSummary `json:"enhanced_summary"`
	OutliersCount int                `json:"outliers_count"`
}

type CompletedEventPayload struct {
	Insights ExecutiveSummary `json:"ai_insights"`
}

type FailedEventPayload struct {
	Error string `json:"error"`
}
