package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pixforge/pixforge-api/internal/pricing"
	"github.com/pixforge/pixforge-api/internal/service"
)

// PaymentHandler handles credit purchase endpoints.
type PaymentHandler struct {
	paymentSvc *service.PaymentService
	logger     *slog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(paymentSvc *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, logger: logger}
}

// PackageResponse represents a purchasable credit package.
type PackageResponse struct {
	Credits      int     `json:"credits"`
	Price        float64 `json:"price"`
	Bonus        int     `json:"bonus"`
	TotalCredits int     `json:"total_credits"`
}

// PackagesOutput lists the available credit packages.
type PackagesOutput struct {
	Body struct {
		Packages []PackageResponse `json:"packages"`
	}
}

// Packages lists the purchasable credit packages.
func (h *PaymentHandler) Packages(ctx context.Context, _ *struct{}) (*PackagesOutput, error) {
	out := &PackagesOutput{}
	out.Body.Packages = make([]PackageResponse, 0, len(pricing.Packages))
	for _, pkg := range pricing.Packages {
		out.Body.Packages = append(out.Body.Packages, PackageResponse{
			Credits:      pkg.Credits,
			Price:        pkg.Price,
			Bonus:        pkg.Bonus,
			TotalCredits: pkg.TotalCredits(),
		})
	}
	return out, nil
}

// CreateOrderInput selects the package to purchase.
type CreateOrderInput struct {
	Body struct {
		Credits int `json:"credits" minimum:"1" doc:"Base credits of the package to buy"`
	}
}

// CreateOrderOutput returns the created order and the gateway payment URL.
type CreateOrderOutput struct {
	Body struct {
		OrderRef string  `json:"order_ref"`
		Amount   float64 `json:"amount"`
		Credits  int     `json:"credits"`
		PayURL   string  `json:"pay_url"`
	}
}

// CreateOrder creates a payment order for a credit package and returns
// the gateway URL the client should redirect to.
func (h *PaymentHandler) CreateOrder(ctx context.Context, input *CreateOrderInput) (*CreateOrderOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.paymentSvc.CreateOrder(ctx, userID, input.Body.Credits)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &CreateOrderOutput{}
	out.Body.OrderRef = result.Payment.OrderRef
	out.Body.Amount = result.Payment.Amount
	out.Body.Credits = result.Payment.Credits
	out.Body.PayURL = result.PayURL
	return out, nil
}

// NotifyRaw handles the payment gateway's asynchronous settlement
// callback. This is a raw HTTP handler because the gateway signs the
// exact parameter set it sends, so the payload must be taken as-is.
func (h *PaymentHandler) NotifyRaw(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{}

	switch {
	case strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	default:
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		for key := range r.Form {
			params[key] = r.Form.Get(key)
		}
	}

	if err := h.paymentSvc.HandleNotify(r.Context(), params); err != nil {
		h.logger.Warn("payment notify rejected", "error", err)
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			writeJSONError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidSignature), errors.Is(err, service.ErrAmountMismatch):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// The gateway retries until it sees this exact body.
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("success"))
}
