package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid dataset status transition")
	ErrPhaseOrder        = errors.New("previous phase not complete")
)

// Store is the data access interface. All database operations go through here.
//
// Phase saves are write-once: saving a phase whose flag is already set is a
// no-op that returns nil. Saving a phase before its predecessor completed
// returns ErrPhaseOrder.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultOwner(ctx context.Context) (*models.Owner, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error

	CreateDataset(ctx context.Context, d *models.Dataset) error
	GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetOwnedDataset(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Dataset, error)
	// ListDatasets returns the owner's datasets newest first. A limit of
	// zero or less returns all of them.
	ListDatasets(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Dataset, error)
	UpdateDatasetStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveProfiling(ctx context.Context, id uuid.UUID, result models.ProfilingResult) error
	SaveAnalysis(ctx context.Context, id uuid.UUID, result models.AnalysisResult) error
	// SaveInsights stores the executive summary and completes the dataset.
	SaveInsights(ctx context.Context, id uuid.UUID, insights models.ExecutiveSummary) error
	FailDataset(ctx context.Context, id uuid.UUID, message string) error
	DeleteDataset(ctx context.Context, id uuid.UUID) error
}

var allStatuses = []string{
	models.DatasetStatusProcessing,
	models.DatasetStatusProfiling,
	models.DatasetStatusAnalyzing,
	models.DatasetStatusAIProcessing,
	models.DatasetStatusCompleted,
	models.DatasetStatusFailed,
}

// predecessors lists the statuses from which to is reachable.
func predecessors(to string) []string {
	var from []string
	for _, s := range allStatuses {
		if models.CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}
