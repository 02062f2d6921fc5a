package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/venuebook/internal/middleware"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/joshua-takyi/venuebook/internal/services"
)

// publicError picks the status for the error kind and the message safe to show.
// Storage and unknown failures never expose their cause; they go to c.Errors instead.
func publicError(c *gin.Context, err error) (int, string) {
	status := services.StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && !errors.Is(err, services.ErrUpstream) {
		if errors.Is(err, services.ErrPersistence) {
			msg = services.ErrPersistence.Error()
		} else {
			msg = "Internal server error"
		}
		_ = c.Error(err)
	}
	return status, msg
}

// respondError writes {error} with the status for the error kind.
func respondError(c *gin.Context, err error) {
	status, msg := publicError(c, err)
	c.JSON(status, gin.H{"error": msg})
}

// respondAPIError is respondError for routes that answer in the ApiResponse envelope.
func respondAPIError(c *gin.Context, err error) {
	status, msg := publicError(c, err)
	c.JSON(status, models.ErrorResponse(msg))
}

// bearerCredential returns the token from "Authorization: Bearer <token>", or "".
func bearerCredential(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// currentIdentity reads the caller set by AuthMiddleware and answers 401 when absent.
func currentIdentity(c *gin.Context) (*models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return identity, true
}
