// Package service contains the business logic layer.
package service

import (
	"log/slog"

	"github.com/pixforge/pixforge-api/internal/config"
	"github.com/pixforge/pixforge-api/internal/repository"
	"github.com/pixforge/pixforge-api/internal/zpay"
)

// Services holds all service instances.
type Services struct {
	Auth       *AuthService
	Backend    *BackendService
	Generation *GenerationService
	Payment    *PaymentService
	Admin      *AdminService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) *Services {
	gateway := zpay.NewClient(zpay.Config{
		MerchantID: cfg.ZPayMerchantID,
		SecretKey:  cfg.ZPaySecretKey,
		APIURL:     cfg.ZPayAPIURL,
	})

	authSvc := NewAuthService(cfg, repos, logger)
	backendSvc := NewBackendService(cfg, repos, logger)
	generationSvc := NewGenerationService(repos, backendSvc, logger)
	paymentSvc := NewPaymentService(cfg, repos, gateway, logger)
	adminSvc := NewAdminService(repos, logger)

	return &Services{
		Auth:       authSvc,
		Backend:    backendSvc,
		Generation: generationSvc,
		Payment:    paymentSvc,
		Admin:      adminSvc,
	}
}
