package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/pixforge/pixforge-api/internal/config"
	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/pricing"
	"github.com/pixforge/pixforge-api/internal/repository"
	"github.com/pixforge/pixforge-api/internal/zpay"
)

var (
	ErrInvalidPackage   = errors.New("unknown credit package")
	ErrInvalidSignature = errors.New("invalid callback signature")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrAmountMismatch   = errors.New("settled amount does not match payment")
	ErrGatewayError     = errors.New("payment gateway error")
)

// PaymentService creates credit purchase orders and settles gateway
// callbacks.
type PaymentService struct {
	cfg     *config.Config
	repos   *repository.Repositories
	gateway *zpay.Client
	logger  *slog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(cfg *config.Config, repos *repository.Repositories, gateway *zpay.Client, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		cfg:     cfg,
		repos:   repos,
		gateway: gateway,
		logger:  logger,
	}
}

// CreateOrderResult carries the gateway redirect for a created order.
type CreateOrderResult struct {
	Payment *models.Payment
	Order   *models.Order
	PayURL  string
}

// CreateOrder validates the package, records Order and Payment atomically,
// and asks the gateway for a redirect URL. A gateway failure marks both
// records failed/cancelled rather than leaving them pending.
func (s *PaymentService) CreateOrder(ctx context.Context, userID string, credits int) (*CreateOrderResult, error) {
	pkg, ok := pricing.FindPackage(credits)
	if !ok {
		return nil, ErrInvalidPackage
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		UserID:        userID,
		OrderRef:      newOrderRef(),
		Amount:        pkg.Price,
		Credits:       pkg.TotalCredits(),
		Status:        models.PaymentStatusPending,
		PaymentMethod: "zpay",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order := &models.Order{
		UserID:      userID,
		TotalAmount: pkg.Price,
		Credits:     pkg.TotalCredits(),
		Status:      models.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Payment.CreateWithOrder(ctx, payment, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := s.gateway.CreatePayment(ctx, zpay.CreateRequest{
		OrderRef:  payment.OrderRef,
		Amount:    payment.Amount,
		Credits:   payment.Credits,
		NotifyURL: s.cfg.BaseURL + "/api/v1/payment/notify",
		ReturnURL: s.cfg.BaseURL + "/payment/return",
	})
	if !result.Success {
		if err := s.repos.Payment.MarkFailed(ctx, payment.ID); err != nil {
			s.logger.Error("failed to mark payment failed", "payment_id", payment.ID, "error", err)
		}
		s.logger.Warn("gateway rejected payment creation",
			"order_ref", payment.OrderRef, "error", result.Error)
		return nil, fmt.Errorf("%w: %s", ErrGatewayError, result.Error)
	}

	if result.TradeNo != "" {
		if err := s.repos.Payment.SetGatewayTradeNo(ctx, payment.ID, result.TradeNo); err != nil {
			s.logger.Error("failed to record gateway trade no", "payment_id", payment.ID, "error", err)
		}
		payment.GatewayTradeNo = result.TradeNo
	}

	s.logger.Info("payment order created",
		"order_ref", payment.OrderRef, "amount", payment.Amount, "credits", payment.Credits)
	return &CreateOrderResult{Payment: payment, Order: order, PayURL: result.PayURL}, nil
}

// HandleNotify settles a gateway webhook. Verification failures reject
// without mutating state; a replay of an already-settled payment is a
// successful no-op.
func (s *PaymentService) HandleNotify(ctx context.Context, body map[string]any) error {
	params := zpay.NormalizeCallback(body)
	if !s.gateway.VerifyCallback(params) {
		return ErrInvalidSignature
	}

	orderRef := params["out_trade_no"]
	payment, err := s.repos.Payment.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return fmt.Errorf("failed to look up payment: %w", err)
	}
	if payment == nil {
		return ErrPaymentNotFound
	}
	if payment.Status == models.PaymentStatusPaid {
		s.logger.Info("callback replay for settled payment", "order_ref", orderRef)
		return nil
	}

	totalFee, err := strconv.ParseFloat(params["total_fee"], 64)
	if err != nil || totalFee != payment.Amount {
		s.logger.Warn("callback amount mismatch",
			"order_ref", orderRef, "expected", payment.Amount, "got", params["total_fee"])
		return ErrAmountMismatch
	}

	if zpay.SettledStatus(params["trade_status"]) {
		credited, err := s.repos.Payment.SettlePaid(ctx, payment.ID, params["trade_no"])
		if err != nil {
			return fmt.Errorf("failed to settle payment: %w", err)
		}
		if credited {
			s.logger.Info("payment settled",
				"order_ref", orderRef, "credits", payment.Credits, "user_id", payment.UserID)
		}
		return nil
	}

	if err := s.repos.Payment.MarkFailed(ctx, payment.ID); err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	s.logger.Info("payment failed at gateway", "order_ref", orderRef, "trade_status", params["trade_status"])
	return nil
}

// Packages returns the fixed price table for the storefront.
func (s *PaymentService) Packages() []pricing.CreditPackage {
	return pricing.Packages
}

const orderRefChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// newOrderRef builds the merchant order reference sent to the gateway.
func newOrderRef() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = orderRefChars[rand.Intn(len(orderRefChars))]
	}
	return fmt.Sprintf("ORDER_%d_%s", time.Now().UnixMilli(), suffix)
}
