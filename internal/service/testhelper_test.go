package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pixforge/pixforge-api/internal/config"
	"github.com/pixforge/pixforge-api/internal/database/migrations"
	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/repository"
	_ "github.com/tursodatabase/go-libsql"
)

// testConfig returns a config suitable for service tests. The ComfyUI URL
// acts as the fallback backend when no config row is active.
func testConfig(comfyURL string) *config.Config {
	return &config.Config{
		Port:          8080,
		BaseURL:       "http://localhost:8080",
		JWTSecret:     "test-secret",
		JWTExpiry:     time.Hour,
		ComfyUIAPIURL: comfyURL,
		ZPayAPIURL:    "http://127.0.0.1:1",
	}
}

// testLogger discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestRepos creates repositories backed by an in-memory database.
func setupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return repository.NewRepositories(db)
}

// createTestUser inserts a user with the given balance.
func createTestUser(t *testing.T, repos *repository.Repositories, id string, credits int) *models.User {
	t.Helper()
	user := &models.User{
		ID:           id,
		Email:        id + "@example.com",
		Username:     "user-" + id,
		PasswordHash: "hash",
		Credits:      credits,
		Role:         models.RoleNormal,
	}
	if err := repos.User.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// userCredits reads the current balance.
func userCredits(t *testing.T, repos *repository.Repositories, userID string) int {
	t.Helper()
	user, err := repos.User.GetByID(context.Background(), userID)
	if err != nil || user == nil {
		t.Fatalf("failed to get user %s: %v", userID, err)
	}
	return user.Credits
}
