package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pixforge/pixforge-api/internal/comfy"
	"github.com/pixforge/pixforge-api/internal/config"
	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/repository"
)

var (
	ErrConfigNotFound  = errors.New("backend config not found")
	ErrConfigNameTaken = errors.New("backend config name already in use")
	ErrConfigActive    = errors.New("cannot delete the active backend config")
	ErrNoBackend       = errors.New("no workflow backend configured")
)

// BackendService manages workflow backend configurations and resolves the
// endpoint submissions and polls should target.
type BackendService struct {
	cfg    *config.Config
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewBackendService creates a new backend config service.
func NewBackendService(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) *BackendService {
	return &BackendService{
		cfg:    cfg,
		repos:  repos,
		logger: logger,
	}
}

// Create adds a backend config. The first config ever created is activated
// automatically so a fresh deployment works without a second admin step.
func (s *BackendService) Create(ctx context.Context, name, apiURL, apiKey string) (*models.BackendConfig, error) {
	name = strings.TrimSpace(name)
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if name == "" || apiURL == "" {
		return nil, fmt.Errorf("name and api_url are required")
	}

	existing, err := s.repos.BackendConfig.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check config name: %w", err)
	}
	if existing != nil {
		return nil, ErrConfigNameTaken
	}

	count, err := s.repos.BackendConfig.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count configs: %w", err)
	}

	now := time.Now().UTC()
	cfg := &models.BackendConfig{
		Name:      name,
		APIURL:    apiURL,
		APIKey:    apiKey,
		IsActive:  count == 0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.BackendConfig.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	s.logger.Info("backend config created", "config_id", cfg.ID, "name", name, "active", cfg.IsActive)
	return cfg, nil
}

// Get loads one config by id.
func (s *BackendService) Get(ctx context.Context, id string) (*models.BackendConfig, error) {
	cfg, err := s.repos.BackendConfig.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

// List returns all configs.
func (s *BackendService) List(ctx context.Context) ([]*models.BackendConfig, error) {
	return s.repos.BackendConfig.List(ctx)
}

// Update edits a config's endpoint fields.
func (s *BackendService) Update(ctx context.Context, id, name, apiURL, apiKey string) (*models.BackendConfig, error) {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if name != "" && name != cfg.Name {
		existing, err := s.repos.BackendConfig.GetByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check config name: %w", err)
		}
		if existing != nil {
			return nil, ErrConfigNameTaken
		}
		cfg.Name = name
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}

	if err := s.repos.BackendConfig.Update(ctx, cfg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to update config: %w", err)
	}
	return cfg, nil
}

// SetActive activates or deactivates a config. Activation is exclusive.
func (s *BackendService) SetActive(ctx context.Context, id string, active bool) (*models.BackendConfig, error) {
	if err := s.repos.BackendConfig.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to set active state: %w", err)
	}
	s.logger.Info("backend config active state changed", "config_id", id, "active", active)
	return s.Get(ctx, id)
}

// Delete removes a config. The active config cannot be deleted; it must be
// deactivated or replaced first.
func (s *BackendService) Delete(ctx context.Context, id string) error {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if cfg.IsActive {
		return ErrConfigActive
	}
	if err := s.repos.BackendConfig.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to delete config: %w", err)
	}
	s.logger.Info("backend config deleted", "config_id", id, "name", cfg.Name)
	return nil
}

// ResolveClient returns a client for the active config, falling back to
// the environment-configured endpoint when no row is active.
func (s *BackendService) ResolveClient(ctx context.Context) (*comfy.Client, error) {
	active, err := s.repos.BackendConfig.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active config: %w", err)
	}
	if active != nil {
		return comfy.NewClient(active.APIURL, active.APIKey), nil
	}
	if s.cfg.ComfyUIAPIURL != "" {
		return comfy.NewClient(s.cfg.ComfyUIAPIURL, s.cfg.ComfyUIAPIKey), nil
	}
	return nil, ErrNoBackend
}

// TestConnection probes a config's endpoint.
func (s *BackendService) TestConnection(ctx context.Context, id string) error {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	client := comfy.NewClient(cfg.APIURL, cfg.APIKey)
	return client.TestConnection(ctx)
}
