package upload_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/equiplens/internal/filestore"
	"github.com/kiranshivaraju/equiplens/internal/store"
	"github.com/kiranshivaraju/equiplens/internal/upload"
	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvBody = "Equipment Name,Type,Flowrate,Pressure,Temperature\nPump-1,Pump,120,5.2,110\n"

type recordingQueue struct {
	mu    sync.Mutex
	tasks []models.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type recordingInvalidator struct {
	ids []uuid.UUID
	err error
}

func (r *recordingInvalidator) InvalidateDataset(_ context.Context, d *models.Dataset) error {
	r.ids = append(r.ids, d.ID)
	return r.err
}

// stepClock returns a clock that advances one minute per call.
func stepClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

type fixture struct {
	svc   *upload.Service
	store *store.MemoryStore
	files *filestore.Store
	queue *recordingQueue
	inv   *recordingInvalidator
	owner uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	owner, err := st.GetDefaultOwner(context.Background())
	require.NoError(t, err)

	f := &fixture{
		store: st,
		files: filestore.NewMemory(),
		queue: &recordingQueue{},
		inv:   &recordingInvalidator{},
		owner: owner.ID,
	}
	f.svc = upload.NewService(f.store, f.files, f.queue, f.inv, upload.WithClock(stepClock()))
	return f
}

func TestUpload_CreatesDatasetAndSchedulesPhase1(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Upload(ctx, f.owner, "plant.csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	assert.Equal(t, models.DatasetStatusProcessing, d.Status)
	assert.Equal(t, f.owner, d.OwnerID)

	stored, err := f.store.GetDataset(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "plant.csv", stored.Filename)

	ok, err := f.files.Exists(stored.FilePath)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, models.TaskKindPhase1, f.queue.tasks[0].Kind)
	assert.Equal(t, d.ID, f.queue.tasks[0].DatasetID)
}

func TestUpload_RejectsNonCSV(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"plant.xlsx", "plant", "plant.csv.txt"} {
		_, err := f.svc.Upload(context.Background(), f.owner, name, strings.NewReader(csvBody))
		assert.ErrorIs(t, err, upload.ErrNotCSV, name)
	}
	assert.Empty(t, f.queue.tasks)
}

func TestUpload_AcceptsUppercaseExtension(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Upload(context.Background(), f.owner, "PLANT.CSV", strings.NewReader(csvBody))
	require.NoError(t, err)
}

func TestUpload_EnqueueFailure(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("redis down")

	fs := afero.NewMemMapFs()
	f.svc = upload.NewService(f.store, filestore.NewWithFs(fs), f.queue, f.inv, upload.WithClock(stepClock()))

	_, err := f.svc.Upload(context.Background(), f.owner, "plant.csv", strings.NewReader(csvBody))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule profiling")

	datasets, err := f.store.ListDatasets(context.Background(), f.owner, 0)
	require.NoError(t, err)
	assert.Empty(t, datasets, "unscheduled dataset must not linger in PROCESSING")

	entries, err := afero.ReadDir(fs, "datasets")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRetention_SixthUploadEvictsOldest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var uploaded []*models.Dataset
	for i := 0; i < 6; i++ {
		d, err := f.svc.Upload(ctx, f.owner, "plant.csv", strings.NewReader(csvBody))
		require.NoError(t, err)
		uploaded = append(uploaded, d)
	}

	remaining, err := f.store.ListDatasets(ctx, f.owner, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 5)
	for _, d := range remaining {
		assert.NotEqual(t, uploaded[0].ID, d.ID)
	}

	_, err = f.store.GetDataset(ctx, uploaded[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := f.files.Exists(uploaded[0].FilePath)
	require.NoError(t, err)
	assert.False(t, ok, "evicted file must be removed")

	assert.Equal(t, []uuid.UUID{uploaded[0].ID}, f.inv.ids)
}

func TestRetention_InvalidationFailureDoesNotBlockEviction(t *testing.T) {
	f := newFixture(t)
	f.inv.err = errors.New("cache unavailable")
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.svc.Upload(ctx, f.owner, "plant.csv", strings.NewReader(csvBody))
		require.NoError(t, err)
	}

	remaining, err := f.store.ListDatasets(ctx, f.owner, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 5)
}

func TestRetention_CustomLimitAndOwnerIsolation(t *testing.T) {
	f := newFixture(t)
	svc := upload.NewService(f.store, f.files, f.queue, nil,
		upload.WithRetentionLimit(2), upload.WithClock(stepClock()))
	ctx := context.Background()
	other := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.Upload(ctx, f.owner, "a.csv", strings.NewReader(csvBody))
		require.NoError(t, err)
		_, err = svc.Upload(ctx, other, "b.csv", strings.NewReader(csvBody))
		require.NoError(t, err)
	}

	mine, err := f.store.ListDatasets(ctx, f.owner, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := f.store.ListDatasets(ctx, other, 0)
	require.NoError(t, err)
	assert.Len(t, theirs, 2)
}

func TestEnforceRetention_UnderLimitIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, f.owner, "plant.csv", strings.NewReader(csvBody))
	require.NoError(t, err)

	evicted, err := f.svc.EnforceRetention(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}
