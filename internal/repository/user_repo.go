package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixforge/pixforge-api/internal/models"
)

// SQLiteUserRepository implements UserRepository for SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	query := `INSERT INTO users (id, email, username, password_hash, credits, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.Credits, user.Role,
		user.CreatedAt.Format(time.RFC3339), user.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, username, password_hash, credits, role, created_at, updated_at FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, username, password_hash, credits, role, created_at, updated_at FROM users WHERE email = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE email = ? OR username = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, email, username).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// DebitCredits is a single conditional UPDATE: the balance guard and the
// decrement are one statement, so concurrent debits can never drive the
// balance negative.
func (r *SQLiteUserRepository) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	query := `UPDATE users SET credits = credits - ?, updated_at = ? WHERE id = ? AND credits >= ?`
	result, err := r.db.ExecContext(ctx, query, amount, time.Now().UTC().Format(time.RFC3339), userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to debit credits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// Either the user is missing or the balance is too low.
		var credits int
		err := r.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&credits)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		return credits, ErrInsufficientCredits
	}
	return r.currentCredits(ctx, userID)
}

func (r *SQLiteUserRepository) CreditCredits(ctx context.Context, userID string, amount int) (int, error) {
	query := `UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, amount, time.Now().UTC().Format(time.RFC3339), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to credit credits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return 0, ErrNotFound
	}
	return r.currentCredits(ctx, userID)
}

func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *SQLiteUserRepository) currentCredits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := r.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&credits)
	return credits, err
}

func (r *SQLiteUserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var createdAt, updatedAt string
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.Credits, &user.Role, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &user, nil
}
