package helpers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/venuebook/internal/models"
)

var (
	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	numberRe  = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[@$!%*?&]`)
)

func IsPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	return lowerRe.MatchString(password) &&
		upperRe.MatchString(password) &&
		numberRe.MatchString(password) &&
		specialRe.MatchString(password)
}

// JWKSVerifier validates Supabase access tokens against the project's signing keys.
// The key set is fetched once and refreshed in the background. Only asymmetric
// algorithms are accepted; shared secret tokens are left to the auth server.
type JWKSVerifier struct {
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
}

func NewJWKSVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}
	return NewVerifierFromJWKS(jwks), nil
}

// NewVerifierFromJWKS wraps an already loaded key set.
func NewVerifierFromJWKS(jwks *keyfunc.JWKS) *JWKSVerifier {
	return &JWKSVerifier{
		jwks: jwks,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256", "ES256"}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (v *JWKSVerifier) Verify(token string) (*models.Identity, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	claims := &SupabaseClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims.Identity()
}

func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}
