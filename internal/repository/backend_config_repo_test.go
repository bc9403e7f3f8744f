package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pixforge/pixforge-api/internal/models"
)

func TestBackendConfigRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	cfg := &models.BackendConfig{
		Name:   "local",
		APIURL: "http://127.0.0.1:8188",
		APIKey: "secret",
	}
	if err := repos.BackendConfig.Create(ctx, cfg); err != nil {
		t.Fatalf("failed to create config: %v", err)
	}
	if cfg.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := repos.BackendConfig.GetByID(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("failed to get config: %v", err)
	}
	if got == nil {
		t.Fatal("expected config to be found")
	}
	if got.APIURL != "http://127.0.0.1:8188" {
		t.Errorf("api url = %q", got.APIURL)
	}
	if got.IsActive {
		t.Error("expected config to start inactive")
	}

	byName, err := repos.BackendConfig.GetByName(ctx, "local")
	if err != nil {
		t.Fatalf("failed to get by name: %v", err)
	}
	if byName == nil || byName.ID != cfg.ID {
		t.Error("expected lookup by name to return the same config")
	}
}

func TestBackendConfigRepository_ExclusiveActivation(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	a := &models.BackendConfig{Name: "a", APIURL: "http://a:8188"}
	b := &models.BackendConfig{Name: "b", APIURL: "http://b:8188"}
	if err := repos.BackendConfig.Create(ctx, a); err != nil {
		t.Fatalf("failed to create a: %v", err)
	}
	if err := repos.BackendConfig.Create(ctx, b); err != nil {
		t.Fatalf("failed to create b: %v", err)
	}

	if err := repos.BackendConfig.SetActive(ctx, a.ID, true); err != nil {
		t.Fatalf("failed to activate a: %v", err)
	}

	active, err := repos.BackendConfig.GetActive(ctx)
	if err != nil {
		t.Fatalf("failed to get active: %v", err)
	}
	if active == nil || active.ID != a.ID {
		t.Fatal("expected a to be active")
	}

	// Activating b deactivates a in the same transaction
	if err := repos.BackendConfig.SetActive(ctx, b.ID, true); err != nil {
		t.Fatalf("failed to activate b: %v", err)
	}

	active, err = repos.BackendConfig.GetActive(ctx)
	if err != nil {
		t.Fatalf("failed to get active: %v", err)
	}
	if active == nil || active.ID != b.ID {
		t.Fatal("expected b to be active")
	}

	gotA, _ := repos.BackendConfig.GetByID(ctx, a.ID)
	if gotA.IsActive {
		t.Error("expected a to be deactivated")
	}

	// Count the active rows directly
	configs, err := repos.BackendConfig.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	activeCount := 0
	for _, cfg := range configs {
		if cfg.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("active configs = %d, want exactly 1", activeCount)
	}
}

func TestBackendConfigRepository_Deactivate(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	a := &models.BackendConfig{Name: "a", APIURL: "http://a:8188"}
	if err := repos.BackendConfig.Create(ctx, a); err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if err := repos.BackendConfig.SetActive(ctx, a.ID, true); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}
	if err := repos.BackendConfig.SetActive(ctx, a.ID, false); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	active, err := repos.BackendConfig.GetActive(ctx)
	if err != nil {
		t.Fatalf("failed to get active: %v", err)
	}
	if active != nil {
		t.Error("expected no active config")
	}
}

func TestBackendConfigRepository_SetActiveNonExistent(t *testing.T) {
	repos := setupTestRepos(t)

	err := repos.BackendConfig.SetActive(context.Background(), "missing", true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBackendConfigRepository_Update(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	cfg := &models.BackendConfig{Name: "a", APIURL: "http://a:8188"}
	if err := repos.BackendConfig.Create(ctx, cfg); err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	cfg.Name = "renamed"
	cfg.APIURL = "http://b:8188"
	if err := repos.BackendConfig.Update(ctx, cfg); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	got, _ := repos.BackendConfig.GetByID(ctx, cfg.ID)
	if got.Name != "renamed" || got.APIURL != "http://b:8188" {
		t.Errorf("got %q %q after update", got.Name, got.APIURL)
	}
}

func TestBackendConfigRepository_Delete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	cfg := &models.BackendConfig{Name: "a", APIURL: "http://a:8188"}
	if err := repos.BackendConfig.Create(ctx, cfg); err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if err := repos.BackendConfig.Delete(ctx, cfg.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	got, err := repos.BackendConfig.GetByID(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected config to be gone")
	}

	if err := repos.BackendConfig.Delete(ctx, cfg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound on repeat delete", err)
	}
}
