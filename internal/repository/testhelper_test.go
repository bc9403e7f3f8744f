package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pixforge/pixforge-api/internal/database/migrations"
	"github.com/pixforge/pixforge-api/internal/models"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
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

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// createTestUser inserts a user through the repository and returns it.
func createTestUser(t *testing.T, repos *Repositories, id string, credits int) *models.User {
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

// createTestGeneration inserts a generation job through the repository.
func createTestGeneration(t *testing.T, repos *Repositories, id, userID string, creditsUsed int) *models.Generation {
	t.Helper()
	gen := &models.Generation{
		ID:          id,
		UserID:      userID,
		Type:        models.GenTextToImage,
		Prompt:      "a lighthouse at dusk",
		CreditsUsed: creditsUsed,
		Status:      models.GenStatusPending,
		BackendURL:  "http://127.0.0.1:8188",
	}
	if err := repos.Generation.Create(context.Background(), gen); err != nil {
		t.Fatalf("failed to create test generation: %v", err)
	}
	return gen
}

// userCredits reads the current balance directly.
func userCredits(t *testing.T, repos *Repositories, userID string) int {
	t.Helper()
	user, err := repos.User.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if user == nil {
		t.Fatalf("user %s not found", userID)
	}
	return user.Credits
}
