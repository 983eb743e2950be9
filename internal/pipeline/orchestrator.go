// Package pipeline runs the three analysis phases of a dataset as queue
// tasks and serves the on-demand insight operations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/equiplens/internal/ai"
	"github.com/kiranshivaraju/equiplens/internal/analysis"
	"github.com/kiranshivaraju/equiplens/internal/cache"
	"github.com/kiranshivaraju/equiplens/internal/filestore"
	"github.com/kiranshivaraju/equiplens/internal/metrics"
	"github.com/kiranshivaraju/equiplens/internal/notify"
	"github.com/kiranshivaraju/equiplens/internal/queue"
	"github.com/kiranshivaraju/equiplens/internal/store"
	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/kiranshivaraju/equiplens/pkg/tabular"
)

const (
	phaseProfiling = "profiling"
	phaseAnalysis  = "analysis"
	phaseNarrative = "narrative"
)

const (
	defaultTaskWaitTimeout = 60 * time.Second
	defaultPollInterval    = 250 * time.Millisecond
	defaultResultTTL       = 10 * time.Minute
)

// inputError marks a failure caused by the uploaded data. It ends the
// pipeline with FAILED and is never retried.
type inputError struct {
	err error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// Orchestrator advances datasets through PROFILING, ANALYZING and
// AI_PROCESSING. Each phase persists its result, notifies, then schedules
// the next phase. Handlers are idempotent: a phase whose completion flag is
// already set only re-schedules its successor.
type Orchestrator struct {
	store    store.Store
	files    *filestore.Store
	insights models.InsightGenerator
	queue    queue.Queue
	notifier notify.Notifier
	results  cache.Cache
	logger   *slog.Logger

	waitTimeout  time.Duration
	pollInterval time.Duration
	resultTTL    time.Duration
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTaskWaitTimeout bounds how long on-demand callers wait for a result.
func WithTaskWaitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// NewOrchestrator wires the phases. insights is normally the cached
// insight.Service; results holds on-demand task results.
func NewOrchestrator(st store.Store, files *filestore.Store, insights models.InsightGenerator, q queue.Queue,
	n notify.Notifier, results cache.Cache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        st,
		files:        files,
		insights:     insights,
		queue:        q,
		notifier:     n,
		results:      results,
		logger:       slog.Default(),
		waitTimeout:  defaultTaskWaitTimeout,
		pollInterval: defaultPollInterval,
		resultTTL:    defaultResultTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterHandlers routes every task kind to the orchestrator.
func (o *Orchestrator) RegisterHandlers(mux *queue.Mux) {
	mux.Handle(models.TaskKindPhase1, o.RunPhase1)
	mux.Handle(models.TaskKindPhase2, o.RunPhase2)
	mux.Handle(models.TaskKindPhase3, o.RunPhase3)
	mux.Handle(models.TaskKindExplainOutlier, o.handleExplainOutlier)
	mux.Handle(models.TaskKindRecommendations, o.handleRecommendations)
}

// Start schedules phase 1 for a dataset already in PROCESSING.
func (o *Orchestrator) Start(ctx context.Context, datasetID uuid.UUID) error {
	return o.queue.Enqueue(ctx, models.NewTask(models.TaskKindPhase1, datasetID))
}

// RunPhase1 profiles the table and requests analysis suggestions.
func (o *Orchestrator) RunPhase1(ctx context.Context, task models.Task) error {
	return o.runPhase(ctx, phaseProfiling, task, o.profile)
}

// RunPhase2 computes statistics, outliers and correlation.
func (o *Orchestrator) RunPhase2(ctx context.Context, task models.Task) error {
	return o.runPhase(ctx, phaseAnalysis, task, o.analyze)
}

// RunPhase3 writes the executive summary and completes the dataset. It
// never fails the dataset.
func (o *Orchestrator) RunPhase3(ctx context.Context, task models.Task) error {
	return o.runPhase(ctx, phaseNarrative, task, o.narrate)
}

type phaseFunc func(ctx context.Context, d *models.Dataset) (outcome string, err error)

func (o *Orchestrator) runPhase(ctx context.Context, phase string, task models.Task, fn phaseFunc) (err error) {
	start := time.Now()
	log := o.logger.With("phase", phase, "dataset_id", task.DatasetID, "task_id", task.ID, "attempt", task.Attempt)
	outcome := "completed"

	defer func() {
		if r := recover(); r != nil {
			log.Error("phase panicked", "panic", r)
			if phase == phaseNarrative {
				err = o.completeUnavailable(ctx, task.DatasetID, log)
			} else {
				err = &inputError{err: fmt.Errorf("internal error during %s: %v", phase, r)}
			}
		}
		var in *inputError
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound):
			log.Info("dataset no longer exists, stopping")
			outcome, err = "retired", nil
		case errors.As(err, &in):
			outcome, err = "failed", o.fail(ctx, task.DatasetID, in.err, log)
		default:
			outcome = "error"
			log.Error("phase failed, will retry", "error", err)
		}
		metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
		metrics.PhaseOutcomes.WithLabelValues(phase, outcome).Inc()
	}()

	d, err := o.store.GetDataset(ctx, task.DatasetID)
	if err != nil {
		return err
	}
	if d.Status == models.DatasetStatusFailed {
		log.Info("dataset already failed, skipping")
		outcome = "skipped"
		return nil
	}

	log.Info("phase started")
	outcome, err = fn(ctx, d)
	if err == nil {
		log.Info("phase finished", "outcome", outcome, "duration_ms", time.Since(start).Milliseconds())
	}
	return err
}

// fail records a terminal input failure and tells subscribers.
func (o *Orchestrator) fail(ctx context.Context, id uuid.UUID, cause error, log *slog.Logger) error {
	msg := cause.Error()
	d, err := o.store.GetDataset(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load dataset for failure: %w", err)
	}

	if err := o.store.FailDataset(ctx, id, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fail dataset: %w", err)
	}
	log.Error("dataset failed", "error", msg)

	o.notify(ctx, d.OwnerID, models.Event{
		DatasetID: id,
		Status:    models.EventFailed,
		Payload:   models.FailedEventPayload{Error: msg},
	})
	return nil
}

func (o *Orchestrator) profile(ctx context.Context, d *models.Dataset) (string, error) {
	if d.ProfilingComplete {
		return "skipped", o.schedule(ctx, models.TaskKindPhase2, d.ID)
	}
	if err := o.store.UpdateDatasetStatus(ctx, d.ID, models.DatasetStatusProfiling); err != nil {
		return "", fmt.Errorf("enter profiling: %w", err)
	}

	t, err := o.loadTable(ctx, d)
	if err != nil {
		return "", err
	}
	legacy, err := analysis.LegacySummary(t)
	if err != nil {
		return "", &inputError{err: err}
	}
	profile := analysis.ProfileColumns(t)
	suggestions := o.insights.SuggestAnalyses(ctx, profile)

	err = o.store.SaveProfiling(ctx, d.ID, models.ProfilingResult{
		Legacy:      legacy,
		Profile:     profile,
		Suggestions: suggestions,
	})
	if err != nil {
		return "", fmt.Errorf("save profiling: %w", err)
	}

	o.notify(ctx, d.OwnerID, models.Event{
		DatasetID: d.ID,
		Status:    models.EventProfilingComplete,
		Payload:   models.ProfilingEventPayload{ColumnProfile: profile, Suggestions: suggestions},
	})
	return "completed", o.schedule(ctx, models.TaskKindPhase2, d.ID)
}

func (o *Orchestrator) analyze(ctx context.Context, d *models.Dataset) (string, error) {
	if !d.ProfilingComplete {
		return "", fmt.Errorf("analysis before profiling: %w", store.ErrPhaseOrder)
	}
	if d.AnalysisComplete {
		return "skipped", o.schedule(ctx, models.TaskKindPhase3, d.ID)
	}
	if err := o.store.UpdateDatasetStatus(ctx, d.ID, models.DatasetStatusAnalyzing); err != nil {
		return "", fmt.Errorf("enter analysis: %w", err)
	}

	t, err := o.loadTable(ctx, d)
	if err != nil {
		return "", err
	}
	result, err := analysis.Analyze(t)
	if err != nil {
		return "", &inputError{err: err}
	}

	if err := o.store.SaveAnalysis(ctx, d.ID, result); err != nil {
		return "", fmt.Errorf("save analysis: %w", err)
	}

	o.notify(ctx, d.OwnerID, models.Event{
		DatasetID: d.ID,
		Status:    models.EventAnalysisComplete,
		Payload: models.AnalysisEventPayload{
			Summary:       result.Summary,
			OutliersCount: result.Outliers.TotalOutliers,
		},
	})
	return "completed", o.schedule(ctx, models.TaskKindPhase3, d.ID)
}

func (o *Orchestrator) narrate(ctx context.Context, d *models.Dataset) (string, error) {
	if d.AIComplete {
		return "skipped", nil
	}
	if !d.AnalysisComplete || d.Summary == nil {
		return "", fmt.Errorf("narrative before analysis: %w", store.ErrPhaseOrder)
	}
	if err := o.store.UpdateDatasetStatus(ctx, d.ID, models.DatasetStatusAIProcessing); err != nil {
		return "", fmt.Errorf("enter narrative: %w", err)
	}

	summary := o.executiveSummary(ctx, d.ID, narrativeInput(d))
	if err := o.complete(ctx, d, summary); err != nil {
		return "", err
	}
	return "completed", nil
}

func (o *Orchestrator) complete(ctx context.Context, d *models.Dataset, summary models.ExecutiveSummary) error {
	if err := o.store.SaveInsights(ctx, d.ID, summary); err != nil {
		return fmt.Errorf("save insights: %w", err)
	}
	o.notify(ctx, d.OwnerID, models.Event{
		DatasetID: d.ID,
		Status:    models.EventCompleted,
		Payload:   models.CompletedEventPayload{Insights: summary},
	})
	return nil
}

// completeUnavailable finishes a narrative phase that panicked with the
// placeholder summary. AI_PROCESSING cannot move to FAILED.
func (o *Orchestrator) completeUnavailable(ctx context.Context, id uuid.UUID, log *slog.Logger) error {
	d, err := o.store.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	if d.AIComplete {
		return nil
	}
	if !d.AnalysisComplete || d.Summary == nil {
		return fmt.Errorf("narrative before analysis: %w", store.ErrPhaseOrder)
	}
	if err := o.store.UpdateDatasetStatus(ctx, id, models.DatasetStatusAIProcessing); err != nil {
		return fmt.Errorf("enter narrative: %w", err)
	}
	log.Warn("completing with placeholder summary")
	return o.complete(ctx, d, ai.UnavailableSummary(narrativeInput(d)))
}

// notify delivers ev without letting a notifier panic reach the phase.
func (o *Orchestrator) notify(ctx context.Context, ownerID uuid.UUID, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotificationFailures.Inc()
			o.logger.Error("notifier panicked", "dataset_id", ev.DatasetID, "status", ev.Status, "panic", r)
		}
	}()
	o.notifier.Notify(ctx, ownerID, ev)
}

// executiveSummary substitutes the placeholder narrative if generation
// panics.
func (o *Orchestrator) executiveSummary(ctx context.Context, id uuid.UUID, in models.NarrativeInput) (summary models.ExecutiveSummary) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("executive summary panicked", "dataset_id", id, "panic", r)
			summary = ai.UnavailableSummary(in)
		}
	}()
	return o.insights.ExecutiveSummary(ctx, in)
}

func narrativeInput(d *models.Dataset) models.NarrativeInput {
	in := models.NarrativeInput{Summary: *d.Summary}
	if d.Outliers != nil {
		in.Outliers = *d.Outliers
	}
	if d.Correlation != nil {
		in.Correlation = *d.Correlation
	}
	return in
}

// loadTable reads the dataset file. A missing file is an input failure
// unless the dataset itself was evicted meanwhile.
func (o *Orchestrator) loadTable(ctx context.Context, d *models.Dataset) (*tabular.Table, error) {
	f, err := o.files.Open(d.FilePath)
	if errors.Is(err, filestore.ErrNotExist) {
		if _, gerr := o.store.GetDataset(ctx, d.ID); gerr != nil {
			return nil, gerr
		}
		return nil, &inputError{err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	t, err := tabular.ReadCSV(f)
	if err != nil {
		return nil, &inputError{err: err}
	}
	return t, nil
}

func (o *Orchestrator) schedule(ctx context.Context, kind string, id uuid.UUID) error {
	if err := o.queue.Enqueue(ctx, models.NewTask(kind, id)); err != nil {
		return fmt.Errorf("schedule %s: %w", kind, err)
	}
	return nil
}
