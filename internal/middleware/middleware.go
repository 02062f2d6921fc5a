package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/supabase-community/gotrue-go/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	identityKey    = "identity"
	profileKey     = "profile"
	accessTokenKey = "access_token"

	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	refreshCookieTTL   = 3600 * 24 * 30
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get("request_id")

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "HTTP Request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// ErrorHandler provides centralized error handling
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			requestID, _ := c.Get("request_id")

			logger.Error("Request error",
				"request_id", requestID,
				"error", err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)

			if !c.Writer.Written() {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}
	}
}

// Tracing starts a server span per request, continuing any incoming trace context.
func Tracing(service string) gin.HandlerFunc {
	tracer := otel.Tracer("github.com/joshua-takyi/venuebook/internal/middleware")
	propagator := otel.GetTextMapPropagator()
	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				semconv.HTTPRoute(route),
				attribute.String("service", service),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(semconv.HTTPResponseStatusCode(c.Writer.Status()))
	}
}

// Authenticator is what AuthMiddleware needs from the user service.
type Authenticator interface {
	ResolveUser(ctx context.Context, credential string) (*models.Identity, error)
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	GetProfile(ctx context.Context, identity *models.Identity) (*models.Profile, error)
}

// SetAuthCookies stores the session tokens as HttpOnly cookies.
func SetAuthCookies(c *gin.Context, tokens *types.TokenResponse, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, tokens.AccessToken, tokens.ExpiresIn, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, tokens.RefreshToken, refreshCookieTTL, "/", "", secure, true)
}

func ClearAuthCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", secure, true)
}

// bearerToken reads the Authorization header, falling back to the access token cookie.
func bearerToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), true
		}
		return "", false
	}
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, false
	}
	return "", false
}

func unauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"message": "Unauthorized access",
		"error":   reason,
	})
}

// AuthMiddleware resolves the caller from a bearer header or the session cookies. A
// rejected cookie session is refreshed once with the refresh token cookie.
func AuthMiddleware(auth Authenticator, secureCookies bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token, fromHeader := bearerToken(c)
		if token == "" {
			unauthorized(c, "missing access token")
			return
		}

		identity, err := auth.ResolveUser(ctx, token)
		if err != nil && !fromHeader {
			refreshToken, cookieErr := c.Cookie(RefreshTokenCookie)
			if cookieErr != nil || refreshToken == "" {
				unauthorized(c, "access token rejected")
				return
			}
			tokens, refreshErr := auth.RefreshToken(ctx, refreshToken)
			if refreshErr != nil || tokens == nil || tokens.AccessToken == "" {
				logger.Info("Token refresh failed", "error", refreshErr)
				ClearAuthCookies(c, secureCookies)
				unauthorized(c, "token expired and refresh failed")
				return
			}
			logger.Info("Token refreshed successfully", "user_id", tokens.User.ID, "expires_in", tokens.ExpiresIn)
			SetAuthCookies(c, tokens, secureCookies)
			token = tokens.AccessToken
			identity, err = auth.ResolveUser(ctx, token)
		}
		if err != nil || identity == nil {
			unauthorized(c, "access token rejected")
			return
		}

		profile, err := auth.GetProfile(ctx, identity)
		if err != nil {
			logger.Warn("Profile lookup failed, using default role", "user_id", identity.UserID, "error", err)
			profile = &models.Profile{ID: identity.UserID, Email: identity.Email, Role: models.RoleUser}
		}

		c.Set(identityKey, identity)
		c.Set(profileKey, profile)
		c.Set(accessTokenKey, token)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, ok := CurrentProfile(c)
		if !ok {
			unauthorized(c, "not authenticated")
			return
		}
		if profile.SafeRole() != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Forbidden",
				"error":   "requires role " + role,
			})
			return
		}
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*models.Identity)
	return identity, ok && identity != nil
}

func CurrentProfile(c *gin.Context) (*models.Profile, bool) {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil, false
	}
	profile, ok := v.(*models.Profile)
	return profile, ok && profile != nil
}

// AccessToken is the token the request was authenticated with, for row level security.
func AccessToken(c *gin.Context) string {
	return c.GetString(accessTokenKey)
}
