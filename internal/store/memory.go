package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// MemoryStore is an in-process Store used by the offline CLI and by tests.
// Returned records are shallow copies.
type MemoryStore struct {
	mu       sync.Mutex
	owner    models.Owner
	keys     map[uuid.UUID]models.APIKey
	datasets map[uuid.UUID]*memoryDataset
	seq      int64
}

type memoryDataset struct {
	d   models.Dataset
	seq int64
}

// NewMemoryStore returns an empty store seeded with the default owner.
func NewMemoryStore() *MemoryStore {
	now := time.Now().UTC()
	return &MemoryStore{
		owner:    models.Owner{ID: uuid.New(), Name: "default", CreatedAt: now, UpdatedAt: now},
		keys:     make(map[uuid.UUID]models.APIKey),
		datasets: make(map[uuid.UUID]*memoryDataset),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) GetDefaultOwner(context.Context) (*models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.owner
	return &o, nil
}

func (s *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, copyAPIKey(k))
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	k.UpdatedAt = now
	s.keys[id] = k
	return nil
}

func (s *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; ok {
		return ErrDuplicateKey
	}
	for _, k := range s.keys {
		if k.OwnerID == key.OwnerID && k.Name == key.Name && k.DeletedAt == nil {
			return ErrDuplicateKey
		}
	}
	s.keys[key.ID] = *copyAPIKey(*key)
	return nil
}

func (s *MemoryStore) ListAPIKeys(_ context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.OwnerID == ownerID && k.DeletedAt == nil {
			out = append(out, copyAPIKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) RevokeAPIKey(_ context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.OwnerID != ownerID || k.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	k.DeletedAt = &now
	k.UpdatedAt = now
	s.keys[id] = k
	return nil
}

func copyAPIKey(k models.APIKey) *models.APIKey {
	k.Scopes = append([]string(nil), k.Scopes...)
	return &k
}

func (s *MemoryStore) CreateDataset(_ context.Context, d *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[d.ID]; ok {
		return ErrDuplicateKey
	}
	s.seq++
	s.datasets[d.ID] = &memoryDataset{d: *d, seq: s.seq}
	return nil
}

func (s *MemoryStore) GetDataset(_ context.Context, id uuid.UUID) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.datasets[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := m.d
	return &d, nil
}

func (s *MemoryStore) GetOwnedDataset(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Dataset, error) {
	d, err := s.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) ListDatasets(_ context.Context, ownerID uuid.UUID, limit int) ([]*models.Dataset, error) {
	s.mu.Lock()
	var entries []*memoryDataset
	for _, m := range s.datasets {
		if m.d.OwnerID == ownerID {
			entries = append(entries, m)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.d.UploadedAt.Equal(b.d.UploadedAt) {
			return a.d.UploadedAt.After(b.d.UploadedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]*models.Dataset, 0, len(entries))
	for _, m := range entries {
		d := m.d
		out = append(out, &d)
	}
	s.mu.Unlock()
	return out, nil
}

// update applies fn to the stored dataset under the lock.
func (s *MemoryStore) update(id uuid.UUID, fn func(d *models.Dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.datasets[id]
	if !ok {
		return ErrNotFound
	}
	d := m.d
	if err := fn(&d); err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()
	m.d = d
	return nil
}

func (s *MemoryStore) UpdateDatasetStatus(_ context.Context, id uuid.UUID, status string) error {
	return s.update(id, func(d *models.Dataset) error {
		if !models.CanTransition(d.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, status)
		}
		d.Status = status
		return nil
	})
}

func (s *MemoryStore) SaveProfiling(_ context.Context, id uuid.UUID, result models.ProfilingResult) error {
	return s.update(id, func(d *models.Dataset) error {
		if d.ProfilingComplete {
			return nil
		}
		d.LegacySummary = &result.Legacy
		d.ColumnProfile = &result.Profile
		d.Suggestions = &result.Suggestions
		d.ProfilingComplete = true
		return nil
	})
}

func (s *MemoryStore) SaveAnalysis(_ context.Context, id uuid.UUID, result models.AnalysisResult) error {
	return s.update(id, func(d *models.Dataset) error {
		if !d.ProfilingComplete {
			return fmt.Errorf("%w: profiling", ErrPhaseOrder)
		}
		if d.AnalysisComplete {
			return nil
		}
		d.Summary = &result.Summary
		d.Outliers = &result.Outliers
		d.Correlation = &result.Correlation
		d.AnalysisComplete = true
		return nil
	})
}

func (s *MemoryStore) SaveInsights(_ context.Context, id uuid.UUID, insights models.ExecutiveSummary) error {
	return s.update(id, func(d *models.Dataset) error {
		if !d.AnalysisComplete {
			return fmt.Errorf("%w: analysis", ErrPhaseOrder)
		}
		if d.AIComplete {
			return nil
		}
		if !models.CanTransition(d.Status, models.DatasetStatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, models.DatasetStatusCompleted)
		}
		d.Insights = &insights
		d.AIComplete = true
		d.Status = models.DatasetStatusCompleted
		return nil
	})
}

func (s *MemoryStore) FailDataset(_ context.Context, id uuid.UUID, message string) error {
	return s.update(id, func(d *models.Dataset) error {
		if !models.CanTransition(d.Status, models.DatasetStatusFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, models.DatasetStatusFailed)
		}
		d.Status = models.DatasetStatusFailed
		d.ErrorMessage = &message
		return nil
	})
}

func (s *MemoryStore) DeleteDataset(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return ErrNotFound
	}
	delete(s.datasets, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
