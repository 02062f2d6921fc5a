package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
)

var ErrEmailInUse = errors.New("email already in use")

type UserRepo interface {
	CreateUser(ctx context.Context, req *SignupRequest) (*types.SignupResponse, error)
	AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	ResolveUser(ctx context.Context, accessToken string) (*Identity, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	Logout(ctx context.Context, accessToken string) error
}

func (su *SupabaseRepo) CreateUser(ctx context.Context, req *SignupRequest) (*types.SignupResponse, error) {
	signup := types.SignupRequest{
		Email:    req.Email,
		Password: req.Password,
	}
	if req.FullName != "" {
		signup.Data = map[string]interface{}{"full_name": req.FullName}
	}

	res, err := su.supabaseClient.Auth.Signup(signup)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "already registered") || strings.Contains(msg, "unique constraint") {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return res, nil
}

func (su *SupabaseRepo) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate user: %v", err)
	}
	return resp, nil
}

func (su *SupabaseRepo) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %v", err)
	}
	return resp, nil
}

// Logout revokes the refresh tokens issued for the session behind accessToken.
func (su *SupabaseRepo) Logout(ctx context.Context, accessToken string) error {
	if err := su.supabaseClient.Auth.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("failed to log out: %v", err)
	}
	return nil
}

// ResolveUser asks the auth server who owns the access token.
func (su *SupabaseRepo) ResolveUser(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	res, err := su.supabaseClient.Auth.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %v", err)
	}
	if res == nil || res.ID == uuid.Nil {
		return nil, fmt.Errorf("token does not belong to a user")
	}
	return &Identity{UserID: res.ID, Email: res.Email}, nil
}

func (su *SupabaseRepo) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("invalid UUID")
	}

	raw, _, err := su.privileged().From(ProfileTable).
		Select("id,email,full_name,role,created_at", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	// Supabase returns an array even for single results
	var profiles []Profile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile rows: %v", err)
	}
	if len(profiles) == 0 {
		return nil, ErrNotFound
	}
	return &profiles[0], nil
}
