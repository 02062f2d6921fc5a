package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile mirrors the profiles row keyed by the auth user id.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Profile) SafeRole() string {
	if p == nil || p.Role == "" {
		return RoleUser
	}
	return p.Role
}

// DisplayName falls back to the local part of the email, then to "User".
func (p *Profile) DisplayName() string {
	if p == nil {
		return "User"
	}
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	if at := strings.Index(p.Email, "@"); at > 0 {
		return p.Email[:at]
	}
	return "User"
}

// Identity is the caller resolved from a bearer credential.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
