package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pixforge/pixforge-api/internal/config"
	"github.com/pixforge/pixforge-api/internal/http/mw"
	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/service"
)

// AuthHandler handles registration, login, and session endpoints.
type AuthHandler struct {
	cfg     *config.Config
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(cfg *config.Config, authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{cfg: cfg, authSvc: authSvc}
}

// UserResponse represents a user in responses.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Credits   int    `json:"credits"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Credits:   user.Credits,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

// RegisterInput represents a registration request.
type RegisterInput struct {
	Body struct {
		Email    string `json:"email" format:"email" doc:"Account email"`
		Username string `json:"username" minLength:"3" maxLength:"32" doc:"Display name, unique"`
		Password string `json:"password" minLength:"6" doc:"Account password"`
	}
}

// RegisterOutput represents a registration response.
type RegisterOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		User UserResponse `json:"user"`
	}
}

// Register creates an account and starts a session.
func (h *AuthHandler) Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
	user, err := h.authSvc.Register(ctx, input.Body.Email, input.Body.Username, input.Body.Password)
	if err != nil {
		return nil, mapServiceError(err)
	}

	token, err := h.authSvc.GenerateToken(user)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to create session")
	}

	out := &RegisterOutput{SetCookie: h.sessionCookie(token)}
	out.Body.User = toUserResponse(user)
	return out, nil
}

// LoginInput represents a login request.
type LoginInput struct {
	Body struct {
		Email    string `json:"email" format:"email"`
		Password string `json:"password" minLength:"1"`
	}
}

// LoginOutput represents a login response.
type LoginOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		User  UserResponse `json:"user"`
		Token string       `json:"token"`
	}
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	user, token, err := h.authSvc.Login(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &LoginOutput{SetCookie: h.sessionCookie(token)}
	out.Body.User = toUserResponse(user)
	out.Body.Token = token
	return out, nil
}

// LogoutOutput clears the session cookie.
type LogoutOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success bool `json:"success"`
	}
}

// Logout ends the session.
func (h *AuthHandler) Logout(ctx context.Context, input *struct{}) (*LogoutOutput, error) {
	out := &LogoutOutput{
		SetCookie: http.Cookie{
			Name:     mw.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
	out.Body.Success = true
	return out, nil
}

// MeOutput represents the current user response.
type MeOutput struct {
	Body struct {
		User UserResponse `json:"user"`
	}
}

// Me returns the calling user, including the current credit balance.
func (h *AuthHandler) Me(ctx context.Context, input *struct{}) (*MeOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	user, err := h.authSvc.GetUser(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load user")
	}
	if user == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	out := &MeOutput{}
	out.Body.User = toUserResponse(user)
	return out, nil
}

func (h *AuthHandler) sessionCookie(token string) http.Cookie {
	return http.Cookie{
		Name:     mw.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.JWTExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
