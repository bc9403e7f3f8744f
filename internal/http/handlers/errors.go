package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pixforge/pixforge-api/internal/service"
)

// mapServiceError converts service sentinel errors to HTTP status errors.
// Anything unrecognized becomes a 500 with a generic message so internal
// details never leak.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		return huma.NewError(http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, service.ErrGenerationNotFound),
		errors.Is(err, service.ErrConfigNotFound),
		errors.Is(err, service.ErrPaymentNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrAccountExists),
		errors.Is(err, service.ErrConfigNameTaken):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, service.ErrMissingPrompt),
		errors.Is(err, service.ErrMissingInputImage),
		errors.Is(err, service.ErrInvalidPackage),
		errors.Is(err, service.ErrConfigActive):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrNotImplemented):
		return huma.Error501NotImplemented(err.Error())
	case errors.Is(err, service.ErrNoBackend),
		errors.Is(err, service.ErrGatewayError):
		return huma.Error502BadGateway(err.Error())
	default:
		return huma.Error500InternalServerError("internal error")
	}
}
