package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

var (
	// ErrAnalysisNotReady is returned when phase 2 has not completed yet.
	ErrAnalysisNotReady = errors.New("analysis not complete")
	// ErrTaskTimeout is returned when no result arrives within the wait timeout.
	ErrTaskTimeout = errors.New("timed out waiting for task result")
	// ErrTaskFailed is returned when the worker reported a failure.
	ErrTaskFailed = errors.New("task failed")
)

// ExplainOutlier asks a worker to explain one anomaly and waits for the
// answer. It does not modify the dataset.
func (o *Orchestrator) ExplainOutlier(ctx context.Context, ownerID, datasetID uuid.UUID, q models.OutlierQuery) (models.Explanation, error) {
	var out models.Explanation
	if _, err := o.readyDataset(ctx, ownerID, datasetID); err != nil {
		return out, err
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return out, fmt.Errorf("encode query: %w", err)
	}
	err = o.dispatch(ctx, models.TaskKindExplainOutlier, datasetID, payload, &out)
	return out, err
}

// Recommendations asks a worker for optimization recommendations and waits
// for the answer.
func (o *Orchestrator) Recommendations(ctx context.Context, ownerID, datasetID uuid.UUID) (models.OptimizationSet, error) {
	var out models.OptimizationSet
	if _, err := o.readyDataset(ctx, ownerID, datasetID); err != nil {
		return out, err
	}
	err := o.dispatch(ctx, models.TaskKindRecommendations, datasetID, nil, &out)
	return out, err
}

func (o *Orchestrator) readyDataset(ctx context.Context, ownerID, datasetID uuid.UUID) (*models.Dataset, error) {
	d, err := o.store.GetOwnedDataset(ctx, datasetID, ownerID)
	if err != nil {
		return nil, err
	}
	if !d.AnalysisComplete {
		return nil, ErrAnalysisNotReady
	}
	return d, nil
}

// dispatch enqueues an on-demand task and decodes its result into out.
func (o *Orchestrator) dispatch(ctx context.Context, kind string, datasetID uuid.UUID, payload json.RawMessage, out any) error {
	task := models.NewTask(kind, datasetID)
	task.Payload = payload
	if err := o.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}

	result, err := o.waitResult(ctx, task.ID)
	if err != nil {
		return err
	}
	if result.Status != models.TaskStatusCompleted {
		return fmt.Errorf("%w: %s", ErrTaskFailed, result.Error)
	}
	if err := json.Unmarshal(result.Result, out); err != nil {
		return fmt.Errorf("%w: decode result: %v", ErrTaskFailed, err)
	}
	return nil
}

// waitResult polls the result cache until the task reports or the wait
// timeout passes.
func (o *Orchestrator) waitResult(ctx context.Context, taskID uuid.UUID) (models.TaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		result, found, err := o.results.GetTaskResult(ctx, taskID)
		if err != nil && ctx.Err() == nil {
			o.logger.Warn("task result read failed", "task_id", taskID, "error", err)
		}
		if found {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return models.TaskResult{}, fmt.Errorf("%w after %s", ErrTaskTimeout, o.waitTimeout)
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) handleExplainOutlier(ctx context.Context, task models.Task) error {
	var q models.OutlierQuery
	if err := json.Unmarshal(task.Payload, &q); err != nil {
		return o.storeFailure(ctx, task, fmt.Errorf("decode query: %w", err))
	}
	if _, err := o.store.GetDataset(ctx, task.DatasetID); err != nil {
		return o.storeFailure(ctx, task, err)
	}
	return o.storeResult(ctx, task, o.insights.ExplainOutlier(ctx, q))
}

func (o *Orchestrator) handleRecommendations(ctx context.Context, task models.Task) error {
	d, err := o.store.GetDataset(ctx, task.DatasetID)
	if err != nil {
		return o.storeFailure(ctx, task, err)
	}
	if d.Summary == nil {
		return o.storeFailure(ctx, task, ErrAnalysisNotReady)
	}
	return o.storeResult(ctx, task, o.insights.Optimizations(ctx, *d.Summary))
}

func (o *Orchestrator) storeResult(ctx context.Context, task models.Task, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return o.storeFailure(ctx, task, fmt.Errorf("encode result: %w", err))
	}
	return o.putResult(ctx, models.TaskResult{
		TaskID: task.ID,
		Status: models.TaskStatusCompleted,
		Result: data,
	})
}

// storeFailure reports cause to the waiting caller. The task itself
// succeeds so it is not redelivered.
func (o *Orchestrator) storeFailure(ctx context.Context, task models.Task, cause error) error {
	o.logger.Warn("on-demand task failed", "task_id", task.ID, "kind", task.Kind, "dataset_id", task.DatasetID, "error", cause)
	return o.putResult(ctx, models.TaskResult{
		TaskID: task.ID,
		Status: models.TaskStatusFailed,
		Error:  cause.Error(),
	})
}

func (o *Orchestrator) putResult(ctx context.Context, result models.TaskResult) error {
	if err := o.results.SetTaskResult(ctx, result, o.resultTTL); err != nil {
		return fmt.Errorf("store task result: %w", err)
	}
	return nil
}
