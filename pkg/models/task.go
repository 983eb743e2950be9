package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TaskKindPhase1          = "phase1"
	TaskKindPhase2          = "phase2"
	TaskKindPhase3          = "phase3"
	TaskKindExplainOutlier  = "explain_outlier"
	TaskKindRecommendations = "recommendations"
)

const (
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Task is one unit of work on the task queue. Phase tasks carry only the
// dataset ID; on-demand tasks carry their query in Payload.
type Task struct {
	ID         uuid.UUID       `json:"id"`
	Kind       string          `json:"kind"`
	DatasetID  uuid.UUID       `json:"dataset_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTask builds a task of the given kind for a dataset.
func NewTask(kind string, datasetID uuid.UUID) Task {
	return Task{
		ID:         uuid.New(),
		Kind:       kind,
		DatasetID:  datasetID,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
}

// TaskResult is what an on-demand task leaves behind for the waiting caller.
type TaskResult struct {
	TaskID uuid.UUID       `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
