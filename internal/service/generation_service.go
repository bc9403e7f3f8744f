package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pixforge/pixforge-api/internal/comfy"
	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/pricing"
	"github.com/pixforge/pixforge-api/internal/repository"
)

var (
	// ErrInsufficientCredits mirrors the repository sentinel so handlers
	// only depend on the service layer.
	ErrInsufficientCredits = repository.ErrInsufficientCredits

	ErrGenerationNotFound = errors.New("generation not found")
	ErrNotImplemented     = errors.New("generation type not implemented")
	ErrMissingPrompt      = errors.New("prompt is required")
	ErrMissingInputImage  = errors.New("input image is required")
)

// DefaultRecentLimit caps the recent-generations listing.
const DefaultRecentLimit = 12

// GenerationService owns the generation job lifecycle: debit, submit,
// poll, and refund on submission failure.
type GenerationService struct {
	repos   *repository.Repositories
	backend *BackendService
	logger  *slog.Logger
}

// NewGenerationService creates a new generation service.
func NewGenerationService(repos *repository.Repositories, backend *BackendService, logger *slog.Logger) *GenerationService {
	return &GenerationService{
		repos:   repos,
		backend: backend,
		logger:  logger,
	}
}

// CreateTextToImage debits the cost, records the job, and submits a
// text-conditioned image workflow. A submission failure refunds the debit
// and surfaces as a FAILED job, never as an unhandled fault.
func (s *GenerationService) CreateTextToImage(ctx context.Context, userID string, params comfy.Params) (*models.Generation, error) {
	if params.Prompt == "" {
		return nil, ErrMissingPrompt
	}

	client, err := s.backend.ResolveClient(ctx)
	if err != nil {
		return nil, err
	}

	gen, err := s.startGeneration(ctx, userID, models.GenTextToImage, pricing.CostTextToImage, params, client)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, gen, client, comfy.TextToImageWorkflow(params))
}

// CreateImageToVideo uploads the input image, then debits and submits an
// image-conditioned video workflow. An upload failure after the debit
// fails the job and refunds in the same transaction.
func (s *GenerationService) CreateImageToVideo(ctx context.Context, userID string, params comfy.Params, image io.Reader, filename string) (*models.Generation, error) {
	if params.Prompt == "" {
		return nil, ErrMissingPrompt
	}
	if image == nil {
		return nil, ErrMissingInputImage
	}

	client, err := s.backend.ResolveClient(ctx)
	if err != nil {
		return nil, err
	}

	gen, err := s.startGeneration(ctx, userID, models.GenImageToVideo, pricing.CostImageToVideo, params, client)
	if err != nil {
		return nil, err
	}

	uploadedName, err := client.UploadImage(ctx, image, filename)
	if err != nil {
		return s.failAndRefund(ctx, gen, fmt.Sprintf("image upload failed: %v", err))
	}
	params.InputImage = uploadedName
	gen.InputImage = uploadedName

	return s.submit(ctx, gen, client, comfy.ImageToVideoWorkflow(params))
}

// CreateImageToImage is a declared type without a workflow template yet.
func (s *GenerationService) CreateImageToImage(ctx context.Context, userID string, params comfy.Params) (*models.Generation, error) {
	return nil, ErrNotImplemented
}

// CreateTextToVideo is a declared type without a workflow template yet.
func (s *GenerationService) CreateTextToVideo(ctx context.Context, userID string, params comfy.Params) (*models.Generation, error) {
	return nil, ErrNotImplemented
}

// startGeneration debits the cost and records the PENDING job bound to
// the backend it will be submitted to.
func (s *GenerationService) startGeneration(ctx context.Context, userID string, genType models.GenerationType, cost int, params comfy.Params, client *comfy.Client) (*models.Generation, error) {
	if _, err := s.repos.User.DebitCredits(ctx, userID, cost); err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}

	now := time.Now().UTC()
	gen := &models.Generation{
		UserID:         userID,
		Type:           genType,
		Prompt:         params.Prompt,
		NegativePrompt: params.NegativePrompt,
		CreditsUsed:    cost,
		Status:         models.GenStatusPending,
		BackendURL:     client.BaseURL(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repos.Generation.Create(ctx, gen); err != nil {
		// The job row never existed, so the debit is reversed directly.
		if _, refundErr := s.repos.User.CreditCredits(ctx, userID, cost); refundErr != nil {
			s.logger.Error("failed to refund after create failure", "user_id", userID, "error", refundErr)
		}
		return nil, fmt.Errorf("failed to create generation: %w", err)
	}
	return gen, nil
}

// submit sends the workflow and records the outcome.
func (s *GenerationService) submit(ctx context.Context, gen *models.Generation, client *comfy.Client, workflow comfy.Workflow) (*models.Generation, error) {
	result := client.Submit(ctx, workflow)
	if !result.Success {
		return s.failAndRefund(ctx, gen, result.Error)
	}

	if err := s.repos.Generation.MarkProcessing(ctx, gen.ID, result.JobID); err != nil {
		return nil, fmt.Errorf("failed to record backend job: %w", err)
	}
	gen.Status = models.GenStatusProcessing
	gen.BackendJobID = result.JobID

	s.logger.Info("generation submitted",
		"generation_id", gen.ID, "type", gen.Type, "backend_job_id", result.JobID)
	return gen, nil
}

func (s *GenerationService) failAndRefund(ctx context.Context, gen *models.Generation, reason string) (*models.Generation, error) {
	s.logger.Warn("generation submission failed",
		"generation_id", gen.ID, "type", gen.Type, "error", reason)
	if err := s.repos.Generation.FailWithRefund(ctx, gen.ID, reason); err != nil {
		return nil, fmt.Errorf("failed to record submission failure: %w", err)
	}
	gen.Status = models.GenStatusFailed
	gen.ErrorMessage = reason
	return gen, nil
}

// CheckStatus reconciles a job against the backend's history. Backend
// errors during the fetch are logged and leave the status unchanged; the
// caller retries on its own cadence.
func (s *GenerationService) CheckStatus(ctx context.Context, userID, generationID string) (*models.Generation, error) {
	gen, err := s.repos.Generation.GetByIDForUser(ctx, generationID, userID)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, ErrGenerationNotFound
	}
	if gen.Status.IsTerminal() || gen.BackendJobID == "" {
		return gen, nil
	}

	client := s.pollClient(ctx, gen.BackendURL)
	history, err := client.History(ctx, gen.BackendJobID)
	if err != nil {
		s.logger.Warn("status fetch failed",
			"generation_id", gen.ID, "backend_job_id", gen.BackendJobID, "error", err)
		return gen, nil
	}
	if history == nil {
		// Backend has no record yet; keep waiting.
		return gen, nil
	}

	if history.Status.StatusStr == "error" {
		if err := s.repos.Generation.MarkFailed(ctx, gen.ID, history.ErrorMessage()); err != nil {
			return nil, fmt.Errorf("failed to record backend error: %w", err)
		}
		return s.reload(ctx, gen.ID, userID)
	}

	if history.Status.Completed {
		video := gen.Type == models.GenImageToVideo || gen.Type == models.GenTextToVideo
		var urls []string
		if video {
			urls = client.VideoURLs(history)
		} else {
			urls = client.ImageURLs(history)
		}
		if len(urls) == 0 {
			// Completed without artifacts of the expected kind; keep polling.
			return gen, nil
		}
		if err := s.repos.Generation.MarkCompleted(ctx, gen.ID, urls[0], video); err != nil {
			return nil, fmt.Errorf("failed to record completion: %w", err)
		}
		return s.reload(ctx, gen.ID, userID)
	}

	return gen, nil
}

// Recent lists the caller's newest generations.
func (s *GenerationService) Recent(ctx context.Context, userID string, limit int) ([]*models.Generation, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultRecentLimit
	}
	return s.repos.Generation.GetRecentByUserID(ctx, userID, limit)
}

// pollClient targets the backend URL the job was submitted to, reusing
// that backend's API key when it is still known.
func (s *GenerationService) pollClient(ctx context.Context, backendURL string) *comfy.Client {
	if client, err := s.backend.ResolveClient(ctx); err == nil && client.BaseURL() == backendURL {
		return client
	}
	return comfy.NewClient(backendURL, "")
}

func (s *GenerationService) reload(ctx context.Context, id, userID string) (*models.Generation, error) {
	gen, err := s.repos.Generation.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, ErrGenerationNotFound
	}
	return gen, nil
}
