package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pixforge/pixforge-api/internal/models"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	user := &models.User{
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "hash",
		Credits:      100,
		Role:         models.RoleNormal,
	}
	if err := repos.User.Create(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := repos.User.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if got == nil {
		t.Fatal("expected user to be found")
	}
	if got.Email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", got.Email)
	}
	if got.Credits != 100 {
		t.Errorf("credits = %d, want 100", got.Credits)
	}

	byEmail, err := repos.User.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("failed to get user by email: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Error("expected lookup by email to return the same user")
	}
}

func TestUserRepository_GetNonExistent(t *testing.T) {
	repos := setupTestRepos(t)

	user, err := repos.User.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Error("expected nil user for non-existent ID")
	}
}

func TestUserRepository_ExistsByEmailOrUsername(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 0)

	exists, err := repos.User.ExistsByEmailOrUsername(ctx, "u1@example.com", "someone-else")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected existing email to be detected")
	}

	exists, err = repos.User.ExistsByEmailOrUsername(ctx, "other@example.com", "user-u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected existing username to be detected")
	}

	exists, err = repos.User.ExistsByEmailOrUsername(ctx, "other@example.com", "other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected no match for unused identities")
	}
}

func TestUserRepository_DebitCredits(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 50)

	balance, err := repos.User.DebitCredits(ctx, "u1", 30)
	if err != nil {
		t.Fatalf("failed to debit: %v", err)
	}
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}

	// Exact balance debit succeeds
	balance, err = repos.User.DebitCredits(ctx, "u1", 20)
	if err != nil {
		t.Fatalf("failed to debit to zero: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestUserRepository_DebitInsufficient(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 10)

	_, err := repos.User.DebitCredits(ctx, "u1", 11)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// Balance is unchanged after a rejected debit
	if got := userCredits(t, repos, "u1"); got != 10 {
		t.Errorf("credits = %d, want 10", got)
	}
}

func TestUserRepository_DebitNonExistent(t *testing.T) {
	repos := setupTestRepos(t)

	_, err := repos.User.DebitCredits(context.Background(), "missing", 5)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserRepository_CreditCredits(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 5)

	balance, err := repos.User.CreditCredits(ctx, "u1", 95)
	if err != nil {
		t.Fatalf("failed to credit: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}
}

func TestUserRepository_Count(t *testing.T) {
	repos := setupTestRepos(t)

	createTestUser(t, repos, "u1", 0)
	createTestUser(t, repos, "u2", 0)

	count, err := repos.User.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
