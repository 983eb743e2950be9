package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DatasetStatusProcessing   = "PROCESSING"
	DatasetStatusProfiling    = "PROFILING"
	DatasetStatusAnalyzing    = "ANALYZING"
	DatasetStatusAIProcessing = "AI_PROCESSING"
	DatasetStatusCompleted    = "COMPLETED"
	DatasetStatusFailed       = "FAILED"
)

// datasetTransitions lists the statuses reachable from each status. A phase
// may re-enter its own status when a task is delivered more than once.
var datasetTransitions = map[string][]string{
	DatasetStatusProcessing:   {DatasetStatusProfiling},
	DatasetStatusProfiling:    {DatasetStatusProfiling, DatasetStatusAnalyzing, DatasetStatusFailed},
	DatasetStatusAnalyzing:    {DatasetStatusAnalyzing, DatasetStatusAIProcessing, DatasetStatusFailed},
	DatasetStatusAIProcessing: {DatasetStatusAIProcessing, DatasetStatusCompleted},
}

// CanTransition reports whether a dataset may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range datasetTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further phase may run for the status.
func IsTerminalStatus(status string) bool {
	return status == DatasetStatusCompleted || status == DatasetStatusFailed
}

// Dataset is one uploaded equipment-parameter file and everything the
// pipeline derived from it. Result payloads stay nil until their phase
// persists them, and each completion flag is set once.
type Dataset struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	OwnerID    uuid.UUID `db:"owner_id"    json:"owner_id"`
	Filename   string    `db:"filename"    json:"filename"`
	FilePath   string    `db:"file_path"   json:"-"`
	Status     string    `db:"status"      json:"status"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`

	ProfilingComplete bool `db:"profiling_complete" json:"profiling_complete"`
	AnalysisComplete  bool `db:"analysis_complete"  json:"analysis_complete"`
	AIComplete        bool `db:"ai_complete"        json:"ai_complete"`

	LegacySummary *LegacySummary      `db:"legacy_summary"     json:"legacy_summary,omitempty"`
	ColumnProfile *ColumnProfile      `db:"column_profile"     json:"column_profile,omitempty"`
	Suggestions   *SuggestionSet      `db:"ai_suggestions"     json:"ai_suggestions,omitempty"`
	Summary       *StatisticalSummary `db:"enhanced_summary"   json:"enhanced_summary,omitempty"`
	Outliers      *OutlierReport      `db:"outliers"           json:"outliers,omitempty"`
	Correlation   *CorrelationReport  `db:"correlation_matrix" json:"correlation_matrix,omitempty"`
	Insights      *ExecutiveSummary   `db:"ai_insights"        json:"ai_insights,omitempty"`

	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
}

// ProfilingResult is the output persisted by phase 1.
type ProfilingResult struct {
	Legacy      LegacySummary
	Profile     ColumnProfile
	Suggestions SuggestionSet
}

// AnalysisResult is the output persisted by phase 2.
type AnalysisResult struct {
	Summary     StatisticalSummary
	Outliers    OutlierReport
	Correlation CorrelationReport
}
