package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixforge/pixforge-api/internal/models"
)

// SQLitePaymentRepository implements PaymentRepository for SQLite.
type SQLitePaymentRepository struct {
	db *sql.DB
}

// NewSQLitePaymentRepository creates a new SQLite payment repository.
func NewSQLitePaymentRepository(db *sql.DB) *SQLitePaymentRepository {
	return &SQLitePaymentRepository{db: db}
}

func (r *SQLitePaymentRepository) CreateWithOrder(ctx context.Context, payment *models.Payment, order *models.Order) error {
	if payment.ID == "" {
		payment.ID = ulid.Make().String()
	}
	if order.ID == "" {
		order.ID = ulid.Make().String()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, order_ref, amount, credits, status, payment_method, gateway_trade_no, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.UserID, payment.OrderRef, payment.Amount, payment.Credits,
		payment.Status, payment.PaymentMethod, nullString(payment.GatewayTradeNo),
		payment.CreatedAt.Format(time.RFC3339), payment.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, total_amount, credits, status, payment_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.TotalAmount, order.Credits,
		order.Status, payment.ID,
		order.CreatedAt.Format(time.RFC3339), order.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.PaymentID = payment.ID

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLitePaymentRepository) GetByOrderRef(ctx context.Context, orderRef string) (*models.Payment, error) {
	query := `SELECT id, user_id, order_ref, amount, credits, status, payment_method, gateway_trade_no, created_at, updated_at
		FROM payments WHERE order_ref = ?`
	var p models.Payment
	var tradeNo sql.NullString
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, orderRef).Scan(
		&p.ID, &p.UserID, &p.OrderRef, &p.Amount, &p.Credits, &p.Status, &p.PaymentMethod,
		&tradeNo, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.GatewayTradeNo = tradeNo.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (r *SQLitePaymentRepository) SetGatewayTradeNo(ctx context.Context, id, tradeNo string) error {
	query := `UPDATE payments SET gateway_trade_no = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, tradeNo, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLitePaymentRepository) MarkFailed(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'FAILED', updated_at = ? WHERE id = ? AND status = 'PENDING'`, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// Already settled or failed; leave the record alone.
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = 'CANCELLED', updated_at = ? WHERE payment_id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SettlePaid is the idempotency gate for gateway callbacks: only a PENDING
// payment transitions, and the credit grant rides in the same transaction.
// A replayed callback finds the row already PAID and returns (false, nil).
func (r *SQLitePaymentRepository) SettlePaid(ctx context.Context, id, tradeNo string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'PAID', gateway_trade_no = ?, updated_at = ?
			WHERE id = ? AND status = 'PENDING'`,
		tradeNo, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to settle payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	var userID string
	var credits int
	err = tx.QueryRowContext(ctx, `SELECT user_id, credits FROM payments WHERE id = ?`, id).
		Scan(&userID, &credits)
	if err != nil {
		return false, fmt.Errorf("failed to load payment for settlement: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = 'PAID', updated_at = ? WHERE payment_id = ?`, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`, credits, now, userID)
	if err != nil {
		return false, fmt.Errorf("failed to grant credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

func (r *SQLitePaymentRepository) SumPaidAmount(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'PAID'`).Scan(&total)
	return total, err
}
