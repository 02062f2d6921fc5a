package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/venuebook/internal/middleware"
	"github.com/joshua-takyi/venuebook/internal/services"
)

// Logout ends the Supabase session when a token is present and always clears the cookies.
func Logout(u *services.UserService, secureCookies bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerCredential(c)
		if token == "" {
			token, _ = c.Cookie(middleware.AccessTokenCookie)
		}
		if err := u.Logout(c.Request.Context(), token); err != nil {
			logger.Warn("supabase logout failed", "error", err)
		}

		middleware.ClearAuthCookies(c, secureCookies)
		c.JSON(http.StatusOK, gin.H{
			"message": "Logged out successfully",
		})
	}
}
