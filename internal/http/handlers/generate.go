package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pixforge/pixforge-api/internal/comfy"
	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/service"
)

// maxUploadSize bounds image-to-video input uploads.
const maxUploadSize = 20 * 1024 * 1024 // 20MB

// GenerateHandler handles generation job endpoints.
type GenerateHandler struct {
	generationSvc *service.GenerationService
	logger        *slog.Logger
}

// NewGenerateHandler creates a new generation handler.
func NewGenerateHandler(generationSvc *service.GenerationService, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{generationSvc: generationSvc, logger: logger}
}

// GenerationResponse represents a generation job in responses.
type GenerationResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Prompt       string `json:"prompt"`
	Status       string `json:"status"`
	CreditsUsed  int    `json:"credits_used"`
	ImageURL     string `json:"image_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toGenerationResponse(gen *models.Generation) GenerationResponse {
	return GenerationResponse{
		ID:           gen.ID,
		Type:         string(gen.Type),
		Prompt:       gen.Prompt,
		Status:       string(gen.Status),
		CreditsUsed:  gen.CreditsUsed,
		ImageURL:     gen.ImageURL,
		VideoURL:     gen.VideoURL,
		ErrorMessage: gen.ErrorMessage,
		CreatedAt:    gen.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    gen.UpdatedAt.Format(time.RFC3339),
	}
}

// TextToImageInput represents a text-to-image submission.
type TextToImageInput struct {
	Body struct {
		Prompt         string  `json:"prompt" minLength:"1" maxLength:"2000" doc:"Positive prompt"`
		NegativePrompt string  `json:"negative_prompt,omitempty" maxLength:"2000"`
		Width          int     `json:"width,omitempty" minimum:"64" maximum:"2048"`
		Height         int     `json:"height,omitempty" minimum:"64" maximum:"2048"`
		Steps          int     `json:"steps,omitempty" minimum:"1" maximum:"100"`
		CFGScale       float64 `json:"cfg_scale,omitempty" minimum:"0" maximum:"30"`
		Sampler        string  `json:"sampler,omitempty"`
		Seed           int     `json:"seed,omitempty"`
	}
}

// GenerationOutput wraps a single generation job.
type GenerationOutput struct {
	Body struct {
		Generation GenerationResponse `json:"generation"`
	}
}

// TextToImage submits a text-conditioned image job.
func (h *GenerateHandler) TextToImage(ctx context.Context, input *TextToImageInput) (*GenerationOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	gen, err := h.generationSvc.CreateTextToImage(ctx, userID, comfy.Params{
		Prompt:         input.Body.Prompt,
		NegativePrompt: input.Body.NegativePrompt,
		Width:          input.Body.Width,
		Height:         input.Body.Height,
		Steps:          input.Body.Steps,
		CFGScale:       input.Body.CFGScale,
		Sampler:        input.Body.Sampler,
		Seed:           input.Body.Seed,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &GenerationOutput{}
	out.Body.Generation = toGenerationResponse(gen)
	return out, nil
}

// StatusInput identifies the job to reconcile.
type StatusInput struct {
	ID string `path:"id" doc:"Generation job ID"`
}

// CheckStatus reconciles the job against the backend and returns its
// current state.
func (h *GenerateHandler) CheckStatus(ctx context.Context, input *StatusInput) (*GenerationOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	gen, err := h.generationSvc.CheckStatus(ctx, userID, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &GenerationOutput{}
	out.Body.Generation = toGenerationResponse(gen)
	return out, nil
}

// RecentInput selects how many recent jobs to list.
type RecentInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" doc:"Max results"`
}

// RecentOutput lists recent generation jobs.
type RecentOutput struct {
	Body struct {
		Generations []GenerationResponse `json:"generations"`
	}
}

// Recent lists the caller's newest jobs.
func (h *GenerateHandler) Recent(ctx context.Context, input *RecentInput) (*RecentOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	gens, err := h.generationSvc.Recent(ctx, userID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list generations")
	}

	out := &RecentOutput{}
	out.Body.Generations = make([]GenerationResponse, 0, len(gens))
	for _, gen := range gens {
		out.Body.Generations = append(out.Body.Generations, toGenerationResponse(gen))
	}
	return out, nil
}

// ImageToVideoRaw submits an image-conditioned video job. This is a raw
// HTTP handler because the input image arrives as multipart form data.
func (h *GenerateHandler) ImageToVideoRaw(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	prompt := r.FormValue("prompt")
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer func() { _ = file.Close() }()

	gen, err := h.generationSvc.CreateImageToVideo(r.Context(), userID, comfy.Params{
		Prompt: prompt,
	}, file, header.Filename)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrMissingPrompt), errors.Is(err, service.ErrMissingInputImage):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrInsufficientCredits):
			status = http.StatusPaymentRequired
		case errors.Is(err, service.ErrNoBackend):
			status = http.StatusBadGateway
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"generation": toGenerationResponse(gen)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
