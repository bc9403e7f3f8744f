package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/service"
)

// AdminHandler handles backend configuration and platform stats.
type AdminHandler struct {
	backendSvc *service.BackendService
	adminSvc   *service.AdminService
	logger     *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(backendSvc *service.BackendService, adminSvc *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{backendSvc: backendSvc, adminSvc: adminSvc, logger: logger}
}

// BackendConfigResponse represents a backend configuration. The API key
// is never echoed back.
type BackendConfigResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	APIURL    string `json:"api_url"`
	HasAPIKey bool   `json:"has_api_key"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toBackendConfigResponse(cfg *models.BackendConfig) BackendConfigResponse {
	return BackendConfigResponse{
		ID:        cfg.ID,
		Name:      cfg.Name,
		APIURL:    cfg.APIURL,
		HasAPIKey: cfg.APIKey != "",
		IsActive:  cfg.IsActive,
		CreatedAt: cfg.CreatedAt.Format(time.RFC3339),
		UpdatedAt: cfg.UpdatedAt.Format(time.RFC3339),
	}
}

// BackendConfigOutput wraps a single backend configuration.
type BackendConfigOutput struct {
	Body struct {
		Backend BackendConfigResponse `json:"backend"`
	}
}

// ListBackendsOutput lists all backend configurations.
type ListBackendsOutput struct {
	Body struct {
		Backends []BackendConfigResponse `json:"backends"`
	}
}

// ListBackends lists all backend configurations.
func (h *AdminHandler) ListBackends(ctx context.Context, _ *struct{}) (*ListBackendsOutput, error) {
	configs, err := h.backendSvc.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list backends")
	}

	out := &ListBackendsOutput{}
	out.Body.Backends = make([]BackendConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		out.Body.Backends = append(out.Body.Backends, toBackendConfigResponse(cfg))
	}
	return out, nil
}

// CreateBackendInput describes a new backend configuration.
type CreateBackendInput struct {
	Body struct {
		Name   string `json:"name" minLength:"1" maxLength:"100" doc:"Display name"`
		APIURL string `json:"api_url" minLength:"1" doc:"Backend base URL"`
		APIKey string `json:"api_key,omitempty" doc:"Optional bearer token"`
	}
}

// CreateBackend registers a new backend configuration. The first
// configuration ever created becomes active automatically.
func (h *AdminHandler) CreateBackend(ctx context.Context, input *CreateBackendInput) (*BackendConfigOutput, error) {
	cfg, err := h.backendSvc.Create(ctx, input.Body.Name, input.Body.APIURL, input.Body.APIKey)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &BackendConfigOutput{}
	out.Body.Backend = toBackendConfigResponse(cfg)
	return out, nil
}

// BackendIDInput identifies a backend configuration.
type BackendIDInput struct {
	ID string `path:"id" doc:"Backend configuration ID"`
}

// GetBackend returns a single backend configuration.
func (h *AdminHandler) GetBackend(ctx context.Context, input *BackendIDInput) (*BackendConfigOutput, error) {
	cfg, err := h.backendSvc.Get(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &BackendConfigOutput{}
	out.Body.Backend = toBackendConfigResponse(cfg)
	return out, nil
}

// UpdateBackendInput carries partial updates for a backend
// configuration. Empty fields keep their current values.
type UpdateBackendInput struct {
	ID   string `path:"id" doc:"Backend configuration ID"`
	Body struct {
		Name   string `json:"name,omitempty" maxLength:"100"`
		APIURL string `json:"api_url,omitempty"`
		APIKey string `json:"api_key,omitempty"`
	}
}

// UpdateBackend updates a backend configuration.
func (h *AdminHandler) UpdateBackend(ctx context.Context, input *UpdateBackendInput) (*BackendConfigOutput, error) {
	cfg, err := h.backendSvc.Update(ctx, input.ID, input.Body.Name, input.Body.APIURL, input.Body.APIKey)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &BackendConfigOutput{}
	out.Body.Backend = toBackendConfigResponse(cfg)
	return out, nil
}

// ActivateBackendInput toggles a configuration's active flag.
type ActivateBackendInput struct {
	ID   string `path:"id" doc:"Backend configuration ID"`
	Body struct {
		IsActive bool `json:"is_active"`
	}
}

// ActivateBackend activates or deactivates a backend configuration.
// Activating one deactivates all others.
func (h *AdminHandler) ActivateBackend(ctx context.Context, input *ActivateBackendInput) (*BackendConfigOutput, error) {
	cfg, err := h.backendSvc.SetActive(ctx, input.ID, input.Body.IsActive)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &BackendConfigOutput{}
	out.Body.Backend = toBackendConfigResponse(cfg)
	return out, nil
}

// DeleteBackendOutput acknowledges a deletion.
type DeleteBackendOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// DeleteBackend removes a backend configuration. The active
// configuration cannot be deleted.
func (h *AdminHandler) DeleteBackend(ctx context.Context, input *BackendIDInput) (*DeleteBackendOutput, error) {
	if err := h.backendSvc.Delete(ctx, input.ID); err != nil {
		return nil, mapServiceError(err)
	}

	out := &DeleteBackendOutput{}
	out.Body.Message = "backend deleted"
	return out, nil
}

// TestBackendOutput reports a connectivity probe result.
type TestBackendOutput struct {
	Body struct {
		Reachable bool   `json:"reachable"`
		Error     string `json:"error,omitempty"`
	}
}

// TestBackend probes a backend configuration for reachability.
func (h *AdminHandler) TestBackend(ctx context.Context, input *BackendIDInput) (*TestBackendOutput, error) {
	out := &TestBackendOutput{}
	if err := h.backendSvc.TestConnection(ctx, input.ID); err != nil {
		if errors.Is(err, service.ErrConfigNotFound) {
			return nil, mapServiceError(err)
		}
		out.Body.Reachable = false
		out.Body.Error = err.Error()
		return out, nil
	}
	out.Body.Reachable = true
	return out, nil
}

// StatsOutput reports platform-wide aggregates.
type StatsOutput struct {
	Body struct {
		TotalUsers       int     `json:"total_users"`
		TotalGenerations int     `json:"total_generations"`
		TotalRevenue     float64 `json:"total_revenue"`
		ActiveUsers      int     `json:"active_users"`
	}
}

// GetStats returns platform-wide aggregates.
func (h *AdminHandler) GetStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	stats, err := h.adminSvc.GetStats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to compute stats")
	}

	out := &StatsOutput{}
	out.Body.TotalUsers = stats.TotalUsers
	out.Body.TotalGenerations = stats.TotalGenerations
	out.Body.TotalRevenue = stats.TotalRevenue
	out.Body.ActiveUsers = stats.ActiveUsers
	return out, nil
}
