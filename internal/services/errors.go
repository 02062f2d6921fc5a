package services

import (
	"errors"
	"net/http"

	"github.com/joshua-takyi/venuebook/internal/models"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrAuth        = errors.New("unauthorized")
	ErrForbidden   = errors.New("forbidden")
	ErrSignature   = errors.New("invalid signature")
	ErrMetadata    = errors.New("invalid booking metadata")
	ErrUpstream    = errors.New("payment provider error")
	ErrPersistence = errors.New("persistence error")
)

// StatusFor maps a service error onto the HTTP status the handlers answer with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSignature), errors.Is(err, ErrMetadata):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmailInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
