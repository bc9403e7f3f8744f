package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixforge/pixforge-api/internal/models"
)

// SQLiteBackendConfigRepository implements BackendConfigRepository for SQLite.
type SQLiteBackendConfigRepository struct {
	db *sql.DB
}

// NewSQLiteBackendConfigRepository creates a new SQLite backend config repository.
func NewSQLiteBackendConfigRepository(db *sql.DB) *SQLiteBackendConfigRepository {
	return &SQLiteBackendConfigRepository{db: db}
}

func (r *SQLiteBackendConfigRepository) Create(ctx context.Context, cfg *models.BackendConfig) error {
	if cfg.ID == "" {
		cfg.ID = ulid.Make().String()
	}
	query := `INSERT INTO backend_configs (id, name, api_url, api_key, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		cfg.ID, cfg.Name, cfg.APIURL, nullString(cfg.APIKey), cfg.IsActive,
		cfg.CreatedAt.Format(time.RFC3339), cfg.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteBackendConfigRepository) GetByID(ctx context.Context, id string) (*models.BackendConfig, error) {
	query := `SELECT id, name, api_url, api_key, is_active, created_at, updated_at FROM backend_configs WHERE id = ?`
	return r.scanConfig(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteBackendConfigRepository) GetByName(ctx context.Context, name string) (*models.BackendConfig, error) {
	query := `SELECT id, name, api_url, api_key, is_active, created_at, updated_at FROM backend_configs WHERE name = ?`
	return r.scanConfig(r.db.QueryRowContext(ctx, query, name))
}

func (r *SQLiteBackendConfigRepository) GetActive(ctx context.Context) (*models.BackendConfig, error) {
	query := `SELECT id, name, api_url, api_key, is_active, created_at, updated_at FROM backend_configs WHERE is_active = 1`
	return r.scanConfig(r.db.QueryRowContext(ctx, query))
}

func (r *SQLiteBackendConfigRepository) List(ctx context.Context) ([]*models.BackendConfig, error) {
	query := `SELECT id, name, api_url, api_key, is_active, created_at, updated_at FROM backend_configs ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var configs []*models.BackendConfig
	for rows.Next() {
		var cfg models.BackendConfig
		var apiKey sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.APIURL, &apiKey, &cfg.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		cfg.APIKey = apiKey.String
		cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

func (r *SQLiteBackendConfigRepository) Update(ctx context.Context, cfg *models.BackendConfig) error {
	query := `UPDATE backend_configs SET name = ?, api_url = ?, api_key = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		cfg.Name, cfg.APIURL, nullString(cfg.APIKey), time.Now().UTC().Format(time.RFC3339), cfg.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive makes activation exclusive: every other row is deactivated and
// the target row activated in the same transaction. The partial unique
// index on is_active would reject any path that skipped the first step.
func (r *SQLiteBackendConfigRepository) SetActive(ctx context.Context, id string, active bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if !active {
		result, err := r.db.ExecContext(ctx,
			`UPDATE backend_configs SET is_active = 0, updated_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE backend_configs SET is_active = 0, updated_at = ? WHERE is_active = 1`, now); err != nil {
		return fmt.Errorf("failed to deactivate configs: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE backend_configs SET is_active = 1, updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to activate config: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteBackendConfigRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM backend_configs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteBackendConfigRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backend_configs`).Scan(&count)
	return count, err
}

func (r *SQLiteBackendConfigRepository) scanConfig(row *sql.Row) (*models.BackendConfig, error) {
	var cfg models.BackendConfig
	var apiKey sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.APIURL, &apiKey, &cfg.IsActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.APIKey = apiKey.String
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &cfg, nil
}
