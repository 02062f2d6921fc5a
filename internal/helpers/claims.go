package helpers

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
)

// SupabaseClaims is the payload of a Supabase access token.
type SupabaseClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider  string   `json:"provider"`
		Providers []string `json:"providers"`
	} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the caller identity. Anonymous tokens carry no
// subject and are rejected.
func (sc *SupabaseClaims) Identity() (*models.Identity, error) {
	if sc.Role != "" && sc.Role != "authenticated" {
		return nil, fmt.Errorf("token role %q is not a signed in user", sc.Role)
	}
	id, err := uuid.Parse(strings.TrimSpace(sc.Subject))
	if err != nil {
		return nil, fmt.Errorf("invalid subject in token: %v", err)
	}
	return &models.Identity{UserID: id, Email: sc.Email}, nil
}
