package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/middleware"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/joshua-takyi/venuebook/internal/services"
)

func CreateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", services.ErrValidation, err))
			return
		}

		res, err := u.CreateUser(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		// autoconfirm projects answer with a session instead of a bare user
		user := res.User
		if user.ID == uuid.Nil {
			user = res.Session.User
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":    user.ID,
			"email": user.Email,
		})
	}
}

// AuthenticateUser signs the user in and keeps the tokens in HttpOnly cookies.
func AuthenticateUser(u *services.UserService, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "message": "invalid request payload"})
			return
		}

		tokenRes, err := u.AuthenticateUser(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			status, msg := publicError(c, err)
			c.JSON(status, gin.H{"error": msg, "message": "invalid email or password"})
			return
		}
		if tokenRes == nil || tokenRes.AccessToken == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid token response"})
			return
		}

		middleware.SetAuthCookies(c, tokenRes, secureCookies)

		// Return user info but not tokens
		c.JSON(http.StatusOK, gin.H{
			"user": gin.H{
				"id":    tokenRes.User.ID,
				"email": tokenRes.User.Email,
			},
		})
	}
}

func GetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok {
			return
		}
		profile, ok := middleware.CurrentProfile(c)
		if !ok {
			profile = &models.Profile{ID: identity.UserID, Email: identity.Email}
		}
		role := profile.SafeRole()
		c.JSON(http.StatusOK, gin.H{
			"id":        identity.UserID,
			"email":     identity.Email,
			"full_name": profile.FullName,
			"role":      role,
			"is_admin":  role == models.RoleAdmin,
		})
	}
}
