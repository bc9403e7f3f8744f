// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pixforge/pixforge-api/internal/models"
)

var (
	// ErrInsufficientCredits indicates a debit would drive a balance negative.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")
)

// UserRepository defines methods for user data access.
// Credit mutations are conditional atomic updates: a debit that would
// drive the balance negative fails with ErrInsufficientCredits and has
// no effect.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ExistsByEmailOrUsername reports whether either identity is taken.
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	// DebitCredits atomically decrements the balance and returns the new
	// balance. Fails with ErrInsufficientCredits when balance < amount.
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)
	// CreditCredits atomically increments the balance and returns the new balance.
	CreditCredits(ctx context.Context, userID string, amount int) (int, error)
	Count(ctx context.Context) (int, error)
}

// GenerationRepository defines methods for generation job data access.
// Status transitions are conditional updates so that concurrent polls
// cannot move a job backward or apply a refund twice.
type GenerationRepository interface {
	Create(ctx context.Context, gen *models.Generation) error
	GetByID(ctx context.Context, id string) (*models.Generation, error)
	// GetByIDForUser returns nil when the job is absent or owned by another user.
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Generation, error)
	GetRecentByUserID(ctx context.Context, userID string, limit int) ([]*models.Generation, error)
	// MarkProcessing records the backend job handle; only PENDING rows transition.
	MarkProcessing(ctx context.Context, id, backendJobID string) error
	// MarkCompleted stores the artifact URL; only PROCESSING rows transition.
	MarkCompleted(ctx context.Context, id, artifactURL string, video bool) error
	// MarkFailed records the error without a refund; terminal rows are untouched.
	MarkFailed(ctx context.Context, id, errorMessage string) error
	// FailWithRefund marks a still-PENDING row FAILED and refunds its
	// credits_used to the owner in the same transaction. A row that already
	// left PENDING is left untouched and no refund is issued.
	FailWithRefund(ctx context.Context, id, errorMessage string) error
	Count(ctx context.Context) (int, error)
	// CountActiveUsersSince counts distinct users with generations newer than since.
	CountActiveUsersSince(ctx context.Context, since time.Time) (int, error)
}

// BackendConfigRepository defines methods for workflow backend configuration.
type BackendConfigRepository interface {
	Create(ctx context.Context, cfg *models.BackendConfig) error
	GetByID(ctx context.Context, id string) (*models.BackendConfig, error)
	GetByName(ctx context.Context, name string) (*models.BackendConfig, error)
	GetActive(ctx context.Context) (*models.BackendConfig, error)
	List(ctx context.Context) ([]*models.BackendConfig, error)
	Update(ctx context.Context, cfg *models.BackendConfig) error
	// SetActive with active=true deactivates every other row in the same
	// transaction; afterwards exactly one row is active.
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// PaymentRepository defines methods for order and payment data access.
// Orders and payments are written together: creation, failure, and
// settlement each happen in a single transaction.
type PaymentRepository interface {
	// CreateWithOrder inserts the payment and its order atomically, with
	// the order linked to the payment.
	CreateWithOrder(ctx context.Context, payment *models.Payment, order *models.Order) error
	GetByOrderRef(ctx context.Context, orderRef string) (*models.Payment, error)
	SetGatewayTradeNo(ctx context.Context, id, tradeNo string) error
	// MarkFailed marks the payment FAILED and its linked order CANCELLED.
	MarkFailed(ctx context.Context, id string) error
	// SettlePaid marks a PENDING payment PAID with the gateway trade id,
	// marks the linked order PAID, and credits the owner's balance, all in
	// one transaction. Returns false without side effects when the payment
	// already left PENDING.
	SettlePaid(ctx context.Context, id, tradeNo string) (bool, error)
	// SumPaidAmount totals the amount of all PAID payments.
	SumPaidAmount(ctx context.Context) (float64, error)
}

// Repositories holds all repository implementations.
type Repositories struct {
	User          UserRepository
	Generation    GenerationRepository
	BackendConfig BackendConfigRepository
	Payment       PaymentRepository
}

// NewRepositories creates all SQLite repositories.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User:          NewSQLiteUserRepository(db),
		Generation:    NewSQLiteGenerationRepository(db),
		BackendConfig: NewSQLiteBackendConfigRepository(db),
		Payment:       NewSQLitePaymentRepository(db),
	}
}
