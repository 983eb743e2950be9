// Package upload accepts dataset files and enforces the per-owner retention
// limit.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/equiplens/internal/filestore"
	"github.com/kiranshivaraju/equiplens/internal/metrics"
	"github.com/kiranshivaraju/equiplens/internal/queue"
	"github.com/kiranshivaraju/equiplens/internal/store"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// ErrNotCSV is returned for uploads without a .csv extension.
var ErrNotCSV = errors.New("only CSV files are allowed")

// DefaultRetentionLimit is the number of datasets kept per owner.
const DefaultRetentionLimit = 5

// CacheInvalidator drops the insight-cache entries derived from a dataset.
type CacheInvalidator interface {
	InvalidateDataset(ctx context.Context, d *models.Dataset) error
}

// Service stores uploads, schedules their first phase and retires old
// datasets.
type Service struct {
	store     store.Store
	files     *filestore.Store
	queue     queue.Queue
	insights  CacheInvalidator
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithRetentionLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retention = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the upload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, files *filestore.Store, q queue.Queue, insights CacheInvalidator, opts ...Option) *Service {
	s := &Service{
		store:     st,
		files:     files,
		queue:     q,
		insights:  insights,
		retention: DefaultRetentionLimit,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upload saves the file, creates the dataset in PROCESSING, schedules
// phase 1 and applies retention for the owner.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, filename string, r io.Reader) (*models.Dataset, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, ErrNotCSV
	}

	id := uuid.New()
	path, err := s.files.Save(id, filename, r)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	d := &models.Dataset{
		ID:         id,
		OwnerID:    ownerID,
		Filename:   filename,
		FilePath:   path,
		Status:     models.DatasetStatusProcessing,
		UploadedAt: now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateDataset(ctx, d); err != nil {
		_ = s.files.Remove(path)
		return nil, fmt.Errorf("create dataset: %w", err)
	}

	if err := s.queue.Enqueue(ctx, models.NewTask(models.TaskKindPhase1, id)); err != nil {
		// An unscheduled row would stay in PROCESSING forever.
		if derr := s.store.DeleteDataset(ctx, id); derr != nil {
			s.logger.Warn("delete unscheduled dataset failed", "dataset_id", id, "error", derr)
		}
		if rerr := s.files.Remove(path); rerr != nil {
			s.logger.Warn("remove unscheduled file failed", "dataset_id", id, "error", rerr)
		}
		return nil, fmt.Errorf("schedule profiling: %w", err)
	}
	s.logger.Info("dataset uploaded", "dataset_id", id, "owner_id", ownerID, "filename", filename)

	if _, err := s.EnforceRetention(ctx, ownerID); err != nil {
		s.logger.Warn("retention failed", "owner_id", ownerID, "error", err)
	}
	return d, nil
}

// EnforceRetention deletes the owner's datasets beyond the retention limit,
// oldest first, and returns the evicted IDs. File and cache cleanup is best
// effort.
func (s *Service) EnforceRetention(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	datasets, err := s.store.ListDatasets(ctx, ownerID, 0)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	if len(datasets) <= s.retention {
		return nil, nil
	}

	var evicted []uuid.UUID
	for _, d := range datasets[s.retention:] {
		// The row goes first so an in-flight phase sees ErrNotFound.
		if err := s.store.DeleteDataset(ctx, d.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return evicted, fmt.Errorf("delete dataset %s: %w", d.ID, err)
		}
		if err := s.files.Remove(d.FilePath); err != nil {
			s.logger.Warn("remove dataset file failed", "dataset_id", d.ID, "error", err)
		}
		if s.insights != nil {
			if err := s.insights.InvalidateDataset(ctx, d); err != nil {
				s.logger.Warn("insight cache invalidation failed", "dataset_id", d.ID, "error", err)
			}
		}
		metrics.RetentionEvictions.Inc()
		evicted = append(evicted, d.ID)
		s.logger.Info("dataset evicted", "dataset_id", d.ID, "owner_id", ownerID)
	}
	return evicted, nil
}
