package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixforge/pixforge-api/internal/repository"
)

// activeUserWindow bounds the "active users" stat.
const activeUserWindow = 30 * 24 * time.Hour

// AdminService aggregates platform statistics for the admin console.
type AdminService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(repos *repository.Repositories, logger *slog.Logger) *AdminService {
	return &AdminService{
		repos:  repos,
		logger: logger,
	}
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	TotalUsers       int     `json:"total_users"`
	TotalGenerations int     `json:"total_generations"`
	TotalRevenue     float64 `json:"total_revenue"`
	ActiveUsers      int     `json:"active_users"`
}

// GetStats computes the dashboard aggregate. Active users are those with
// at least one generation inside the window.
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	users, err := s.repos.User.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	generations, err := s.repos.Generation.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count generations: %w", err)
	}
	revenue, err := s.repos.Payment.SumPaidAmount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	active, err := s.repos.Generation.CountActiveUsersSince(ctx, time.Now().UTC().Add(-activeUserWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}

	return &Stats{
		TotalUsers:       users,
		TotalGenerations: generations,
		TotalRevenue:     revenue,
		ActiveUsers:      active,
	}, nil
}
