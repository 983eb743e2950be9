package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Owners ---

func (s *PostgresStore) GetDefaultOwner(ctx context.Context) (*models.Owner, error) {
	var o models.Owner
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM owners WHERE name = 'default' LIMIT 1`,
	).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default owner: %w", err)
	}
	return &o, nil
}

// --- API Keys ---

const apiKeyColumns = `id, owner_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Datasets ---

const datasetColumns = `id, owner_id, filename, file_path, status, uploaded_at, updated_at,
	profiling_complete, analysis_complete, ai_complete,
	legacy_summary, column_profile, ai_suggestions, enhanced_summary, outliers, correlation_matrix, ai_insights,
	error_message`

func scanDataset(row pgx.Row) (*models.Dataset, error) {
	var d models.Dataset
	var legacy, profile, suggestions, summary, outliers, correlation, insights []byte
	err := row.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.FilePath, &d.Status, &d.UploadedAt, &d.UpdatedAt,
		&d.ProfilingComplete, &d.AnalysisComplete, &d.AIComplete,
		&legacy, &profile, &suggestions, &summary, &outliers, &correlation, &insights,
		&d.ErrorMessage)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(legacy, &d.LegacySummary); err != nil {
		return nil, err
	}
	if err := decodeJSON(profile, &d.ColumnProfile); err != nil {
		return nil, err
	}
	if err := decodeJSON(suggestions, &d.Suggestions); err != nil {
		return nil, err
	}
	if err := decodeJSON(summary, &d.Summary); err != nil {
		return nil, err
	}
	if err := decodeJSON(outliers, &d.Outliers); err != nil {
		return nil, err
	}
	if err := decodeJSON(correlation, &d.Correlation); err != nil {
		return nil, err
	}
	if err := decodeJSON(insights, &d.Insights); err != nil {
		return nil, err
	}
	return &d, nil
}

// decodeJSON leaves *dst nil for a NULL column.
func decodeJSON[T any](data []byte, dst **T) error {
	if data == nil {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	*dst = v
	return nil
}

func encodeJSON(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return b, nil
}

func (s *PostgresStore) CreateDataset(ctx context.Context, d *models.Dataset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (id, owner_id, filename, file_path, status, uploaded_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.OwnerID, d.Filename, d.FilePath, d.Status, d.UploadedAt, d.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	d, err := scanDataset(s.pool.QueryRow(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetOwnedDataset(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Dataset, error) {
	d, err := scanDataset(s.pool.QueryRow(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owned dataset: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE owner_id = $1 ORDER BY uploaded_at DESC, id`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	datasets := []*models.Dataset{}
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

func (s *PostgresStore) UpdateDatasetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET status = $2, updated_at = NOW() WHERE id = $1 AND status = ANY($3)`,
		id, status, predecessors(status))
	if err != nil {
		return fmt.Errorf("update dataset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, status)
	}
	return nil
}

func (s *PostgresStore) transitionError(ctx context.Context, id uuid.UUID, to string) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM datasets WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get dataset status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

func (s *PostgresStore) SaveProfiling(ctx context.Context, id uuid.UUID, result models.ProfilingResult) error {
	legacy, err := encodeJSON(result.Legacy)
	if err != nil {
		return err
	}
	profile, err := encodeJSON(result.Profile)
	if err != nil {
		return err
	}
	suggestions, err := encodeJSON(result.Suggestions)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET legacy_summary = $2, column_profile = $3, ai_suggestions = $4,
		   profiling_complete = TRUE, updated_at = NOW()
		 WHERE id = $1 AND NOT profiling_complete`,
		id, legacy, profile, suggestions)
	if err != nil {
		return fmt.Errorf("save profiling: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_, err := s.GetDataset(ctx, id)
		return err
	}
	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, id uuid.UUID, result models.AnalysisResult) error {
	summary, err := encodeJSON(result.Summary)
	if err != nil {
		return err
	}
	outliers, err := encodeJSON(result.Outliers)
	if err != nil {
		return err
	}
	correlation, err := encodeJSON(result.Correlation)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET enhanced_summary = $2, outliers = $3, correlation_matrix = $4,
		   analysis_complete = TRUE, updated_at = NOW()
		 WHERE id = $1 AND profiling_complete AND NOT analysis_complete`,
		id, summary, outliers, correlation)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.phaseError(ctx, id, func(d *models.Dataset) error {
			if !d.ProfilingComplete {
				return fmt.Errorf("%w: profiling", ErrPhaseOrder)
			}
			return nil
		})
	}
	return nil
}

func (s *PostgresStore) SaveInsights(ctx context.Context, id uuid.UUID, insights models.ExecutiveSummary) error {
	data, err := encodeJSON(insights)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET ai_insights = $2, ai_complete = TRUE, status = $3, updated_at = NOW()
		 WHERE id = $1 AND analysis_complete AND NOT ai_complete AND status = ANY($4)`,
		id, data, models.DatasetStatusCompleted, predecessors(models.DatasetStatusCompleted))
	if err != nil {
		return fmt.Errorf("save insights: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.phaseError(ctx, id, func(d *models.Dataset) error {
			switch {
			case !d.AnalysisComplete:
				return fmt.Errorf("%w: analysis", ErrPhaseOrder)
			case d.AIComplete:
				return nil
			default:
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, models.DatasetStatusCompleted)
			}
		})
	}
	return nil
}

// phaseError explains why a phase save touched no row.
func (s *PostgresStore) phaseError(ctx context.Context, id uuid.UUID, check func(*models.Dataset) error) error {
	d, err := s.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	return check(d)
}

func (s *PostgresStore) FailDataset(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET status = $2, error_message = $3, updated_at = NOW()
		 WHERE id = $1 AND status = ANY($4)`,
		id, models.DatasetStatusFailed, message, predecessors(models.DatasetStatusFailed))
	if err != nil {
		return fmt.Errorf("fail dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, models.DatasetStatusFailed)
	}
	return nil
}

func (s *PostgresStore) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
