package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pixforge/pixforge-api/internal/repository"
)

func newBackendService(t *testing.T, repos *repository.Repositories, fallbackURL string) *BackendService {
	t.Helper()
	return NewBackendService(testConfig(fallbackURL), repos, testLogger())
}

func TestBackendService_FirstConfigAutoActivates(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "")
	ctx := context.Background()

	first, err := svc.Create(ctx, "primary", "http://a:8188/", "key-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.IsActive {
		t.Error("expected first config to activate automatically")
	}
	if first.APIURL != "http://a:8188" {
		t.Errorf("api url = %q, want trailing slash trimmed", first.APIURL)
	}

	second, err := svc.Create(ctx, "secondary", "http://b:8188", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.IsActive {
		t.Error("expected later configs to start inactive")
	}
}

func TestBackendService_CreateNameTaken(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "")
	ctx := context.Background()

	if _, err := svc.Create(ctx, "primary", "http://a:8188", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(ctx, "primary", "http://b:8188", ""); !errors.Is(err, ErrConfigNameTaken) {
		t.Fatalf("err = %v, want ErrConfigNameTaken", err)
	}
}

func TestBackendService_SetActiveSwitches(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "")
	ctx := context.Background()

	a, _ := svc.Create(ctx, "a", "http://a:8188", "key-a")
	b, _ := svc.Create(ctx, "b", "http://b:8188", "key-b")

	activated, err := svc.SetActive(ctx, b.ID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !activated.IsActive {
		t.Error("expected b to be active")
	}

	gotA, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotA.IsActive {
		t.Error("expected a to be deactivated by b's activation")
	}

	client, err := svc.ResolveClient(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.BaseURL() != "http://b:8188" {
		t.Errorf("resolved backend = %q, want http://b:8188", client.BaseURL())
	}
}

func TestBackendService_ResolveClientFallback(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "http://env-backend:8188")

	client, err := svc.ResolveClient(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.BaseURL() != "http://env-backend:8188" {
		t.Errorf("resolved backend = %q, want env fallback", client.BaseURL())
	}
}

func TestBackendService_ResolveClientNoBackend(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "")

	if _, err := svc.ResolveClient(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("err = %v, want ErrNoBackend", err)
	}
}

func TestBackendService_DeleteActiveRejected(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "")
	ctx := context.Background()

	cfg, _ := svc.Create(ctx, "primary", "http://a:8188", "")

	if err := svc.Delete(ctx, cfg.ID); !errors.Is(err, ErrConfigActive) {
		t.Fatalf("err = %v, want ErrConfigActive", err)
	}

	if _, err := svc.SetActive(ctx, cfg.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := svc.Delete(ctx, cfg.ID); err != nil {
		t.Fatalf("delete after deactivation: %v", err)
	}
	if _, err := svc.Get(ctx, cfg.ID); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound after delete", err)
	}
}

func TestBackendService_Update(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "")
	ctx := context.Background()

	cfg, _ := svc.Create(ctx, "primary", "http://a:8188", "key-a")

	// Empty fields keep their current values
	updated, err := svc.Update(ctx, cfg.ID, "", "http://c:8188", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "primary" {
		t.Errorf("name = %q, want unchanged primary", updated.Name)
	}
	if updated.APIURL != "http://c:8188" {
		t.Errorf("api url = %q, want http://c:8188", updated.APIURL)
	}
	if updated.APIKey != "key-a" {
		t.Errorf("api key = %q, want unchanged", updated.APIKey)
	}
}

func TestBackendService_TestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/system_stats" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	repos := setupTestRepos(t)
	svc := newBackendService(t, repos, "")
	ctx := context.Background()

	cfg, _ := svc.Create(ctx, "primary", server.URL, "")
	if err := svc.TestConnection(ctx, cfg.ID); err != nil {
		t.Fatalf("probe failed: %v", err)
	}

	down, _ := svc.Create(ctx, "down", "http://127.0.0.1:1", "")
	if err := svc.TestConnection(ctx, down.ID); err == nil {
		t.Error("expected probe failure for unreachable backend")
	}
}
