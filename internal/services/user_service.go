package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/helpers"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

// TokenVerifier checks an access token locally, without a round trip to the auth server.
type TokenVerifier interface {
	Verify(token string) (*models.Identity, error)
}

type UserService struct {
	userRepo models.UserRepo
	verifier TokenVerifier
	notifier Notifier
	logger   *slog.Logger
}

// NewUserService wires the auth passthrough. verifier and notifier may be nil.
func NewUserService(userRepo models.UserRepo, verifier TokenVerifier, notifier Notifier, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		verifier: verifier,
		notifier: notifier,
		logger:   logger,
	}
}

// ResolveUser prefers the local JWKS check and falls back to asking the auth server,
// which also covers projects that still sign with a shared secret.
func (us *UserService) ResolveUser(ctx context.Context, credential string) (*models.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: missing credential", ErrAuth)
	}

	if us.verifier != nil {
		identity, err := us.verifier.Verify(credential)
		if err == nil {
			return identity, nil
		}
		us.logger.Debug("local token verification failed, asking auth server", "error", err)
	}

	identity, err := us.userRepo.ResolveUser(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return identity, nil
}

func (us *UserService) CreateUser(ctx context.Context, req *models.SignupRequest) (*types.SignupResponse, error) {
	if err := models.Validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !helpers.IsPasswordStrong(req.Password) {
		return nil, fmt.Errorf("%w: password is not strong enough", ErrValidation)
	}

	res, err := us.userRepo.CreateUser(ctx, req)
	if err != nil {
		return nil, err
	}

	if us.notifier != nil {
		n := &models.Notification{
			Kind:      models.NotifyUserRegistered,
			To:        req.Email,
			Name:      (&models.Profile{Email: req.Email, FullName: req.FullName}).DisplayName(),
			CreatedAt: time.Now().UTC(),
		}
		if err := us.notifier.Dispatch(ctx, n); err != nil {
			us.logger.Error("failed to dispatch welcome email", "email", req.Email, "error", err)
		}
	}
	return res, nil
}

func (us *UserService) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	if err := models.Validate.Var(password, "required"); err != nil {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	response, err := us.userRepo.AuthenticateUser(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrAuth)
	}
	return response, nil
}

func (us *UserService) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrAuth)
	}
	response, err := us.userRepo.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %v", ErrAuth, err)
	}
	return response, nil
}

// Logout ends the Supabase session. Callers clear cookies whatever the outcome.
func (us *UserService) Logout(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return nil
	}
	return us.userRepo.Logout(ctx, accessToken)
}

// GetProfile returns the caller's profile. A missing row yields a default user profile.
func (us *UserService) GetProfile(ctx context.Context, identity *models.Identity) (*models.Profile, error) {
	if identity == nil || identity.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid identity", ErrAuth)
	}
	profile, err := us.userRepo.GetProfile(ctx, identity.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.Profile{ID: identity.UserID, Email: identity.Email, Role: models.RoleUser}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile.Email == "" {
		profile.Email = identity.Email
	}
	profile.Role = profile.SafeRole()
	return profile, nil
}
