package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixforge/pixforge-api/internal/models"
)

// SQLiteGenerationRepository implements GenerationRepository for SQLite.
type SQLiteGenerationRepository struct {
	db *sql.DB
}

// NewSQLiteGenerationRepository creates a new SQLite generation repository.
func NewSQLiteGenerationRepository(db *sql.DB) *SQLiteGenerationRepository {
	return &SQLiteGenerationRepository{db: db}
}

const generationColumns = `id, user_id, type, prompt, negative_prompt, input_image, parameters_json,
	credits_used, status, backend_job_id, backend_url, image_url, video_url, error_message,
	created_at, updated_at`

func (r *SQLiteGenerationRepository) Create(ctx context.Context, gen *models.Generation) error {
	if gen.ID == "" {
		gen.ID = ulid.Make().String()
	}
	query := `INSERT INTO generations (` + generationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		gen.ID, gen.UserID, gen.Type, gen.Prompt,
		nullString(gen.NegativePrompt), nullString(gen.InputImage), nullString(gen.ParametersJSON),
		gen.CreditsUsed, gen.Status,
		nullString(gen.BackendJobID), nullString(gen.BackendURL),
		nullString(gen.ImageURL), nullString(gen.VideoURL), nullString(gen.ErrorMessage),
		gen.CreatedAt.Format(time.RFC3339), gen.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteGenerationRepository) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ?`
	return r.scanGeneration(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteGenerationRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ? AND user_id = ?`
	return r.scanGeneration(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *SQLiteGenerationRepository) GetRecentByUserID(ctx context.Context, userID string, limit int) ([]*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var gens []*models.Generation
	for rows.Next() {
		gen, err := r.scanGenerationFromRows(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, gen)
	}
	return gens, rows.Err()
}

func (r *SQLiteGenerationRepository) MarkProcessing(ctx context.Context, id, backendJobID string) error {
	query := `UPDATE generations SET status = 'PROCESSING', backend_job_id = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING'`
	_, err := r.db.ExecContext(ctx, query, backendJobID, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteGenerationRepository) MarkCompleted(ctx context.Context, id, artifactURL string, video bool) error {
	column := "image_url"
	if video {
		column = "video_url"
	}
	query := `UPDATE generations SET status = 'COMPLETED', ` + column + ` = ?, updated_at = ?
		WHERE id = ? AND status = 'PROCESSING'`
	_, err := r.db.ExecContext(ctx, query, artifactURL, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteGenerationRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `UPDATE generations SET status = 'FAILED', error_message = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('COMPLETED', 'FAILED')`
	_, err := r.db.ExecContext(ctx, query, errorMessage, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// FailWithRefund couples the PENDING->FAILED transition with the credit
// refund: the conditional UPDATE decides whether the refund applies, so a
// concurrent poll that already moved the row past PENDING suppresses it.
func (r *SQLiteGenerationRepository) FailWithRefund(ctx context.Context, id, errorMessage string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := tx.ExecContext(ctx,
		`UPDATE generations SET status = 'FAILED', error_message = ?, updated_at = ?
			WHERE id = ? AND status = 'PENDING'`,
		errorMessage, now, id)
	if err != nil {
		return fmt.Errorf("failed to fail generation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// Already left PENDING; the debit is spent for real.
		return nil
	}

	var userID string
	var creditsUsed int
	err = tx.QueryRowContext(ctx, `SELECT user_id, credits_used FROM generations WHERE id = ?`, id).
		Scan(&userID, &creditsUsed)
	if err != nil {
		return fmt.Errorf("failed to load generation for refund: %w", err)
	}

	if creditsUsed > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`,
			creditsUsed, now, userID)
		if err != nil {
			return fmt.Errorf("failed to refund credits: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteGenerationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generations`).Scan(&count)
	return count, err
}

func (r *SQLiteGenerationRepository) CountActiveUsersSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(DISTINCT user_id) FROM generations WHERE created_at >= ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, since.Format(time.RFC3339)).Scan(&count)
	return count, err
}

type generationScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteGenerationRepository) scanGeneration(row *sql.Row) (*models.Generation, error) {
	gen, err := scanGenerationRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return gen, err
}

func (r *SQLiteGenerationRepository) scanGenerationFromRows(rows *sql.Rows) (*models.Generation, error) {
	return scanGenerationRow(rows)
}

func scanGenerationRow(s generationScanner) (*models.Generation, error) {
	var gen models.Generation
	var negativePrompt, inputImage, parametersJSON, backendJobID, backendURL, imageURL, videoURL, errorMessage sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&gen.ID, &gen.UserID, &gen.Type, &gen.Prompt,
		&negativePrompt, &inputImage, &parametersJSON,
		&gen.CreditsUsed, &gen.Status,
		&backendJobID, &backendURL, &imageURL, &videoURL, &errorMessage,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	gen.NegativePrompt = negativePrompt.String
	gen.InputImage = inputImage.String
	gen.ParametersJSON = parametersJSON.String
	gen.BackendJobID = backendJobID.String
	gen.BackendURL = backendURL.String
	gen.ImageURL = imageURL.String
	gen.VideoURL = videoURL.String
	gen.ErrorMessage = errorMessage.String
	gen.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	gen.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &gen, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
