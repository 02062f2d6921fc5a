package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
)

// ImageStore keeps venue images and hands back their public URL.
type ImageStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Remove(ctx context.Context, publicURL string) error
}

// VenueImage is an uploaded form file.
type VenueImage struct {
	Reader io.Reader
	Size   int64
}

type VenuesService struct {
	venuesRepo models.VenuesRepo
	images     ImageStore
	notifier   Notifier
	logger     *slog.Logger
}

func NewVenuesService(venuesRepo models.VenuesRepo, images ImageStore, notifier Notifier, logger *slog.Logger) *VenuesService {
	return &VenuesService{
		venuesRepo: venuesRepo,
		images:     images,
		notifier:   notifier,
		logger:     logger,
	}
}

// imageObjectName picks the stored file name: png keeps .png, everything else is stored as jpeg.
func imageObjectName(contentType string) string {
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	return uuid.New().String() + ext
}

// uploadImage sniffs, size checks and stores the image. It returns the public URL.
func (vs *VenuesService) uploadImage(ctx context.Context, img *VenueImage) (string, error) {
	if img.Size > models.MaxVenueImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrValidation, models.MaxVenueImageBytes)
	}
	data, err := io.ReadAll(io.LimitReader(img.Reader, models.MaxVenueImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read image: %v", ErrValidation, err)
	}
	if len(data) > models.MaxVenueImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrValidation, models.MaxVenueImageBytes)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: unsupported image type %s", ErrValidation, mtype.String())
	}
	contentType := "image/jpeg"
	if mtype.Is("image/png") {
		contentType = "image/png"
	}

	url, err := vs.images.Upload(ctx, imageObjectName(contentType), contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return url, nil
}

func (vs *VenuesService) removeImage(ctx context.Context, url string) {
	if url == "" || vs.images == nil {
		return
	}
	if err := vs.images.Remove(context.WithoutCancel(ctx), url); err != nil {
		vs.logger.Warn("failed to remove venue image", "image_url", url, "error", err)
	}
}

func validateVenueInput(in *models.VenueInput) (*time.Time, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: venue data is required", ErrValidation)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if err := models.Validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: invalid venue data provided: %v", ErrValidation, err)
	}
	eventDate, err := models.ParseEventDate(in.EventDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return eventDate, nil
}

// CreateVenue stores the image first and removes it again if the insert fails.
func (vs *VenuesService) CreateVenue(ctx context.Context, owner *models.Identity, in *models.VenueInput, img *VenueImage, accessToken string) (*models.Venue, error) {
	if owner == nil || owner.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner is required", ErrAuth)
	}
	eventDate, err := validateVenueInput(in)
	if err != nil {
		return nil, err
	}

	venue := &models.Venue{
		ID:          uuid.New(),
		OwnerUserID: owner.UserID,
		Name:        in.Name,
		Address:     in.Address,
		Capacity:    in.Capacity,
		EventDate:   eventDate,
		CreatedAt:   time.Now().UTC(),
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		venue.Phone = &phone
	}

	var uploadedURL string
	if img != nil {
		uploadedURL, err = vs.uploadImage(ctx, img)
		if err != nil {
			return nil, err
		}
		venue.ImageURL = &uploadedURL
	}

	created, err := vs.venuesRepo.CreateVenue(ctx, venue, accessToken)
	if err != nil {
		vs.removeImage(ctx, uploadedURL)
		return nil, err
	}

	vs.logger.Info("venue created", "venue_id", created.ID, "owner_user_id", owner.UserID)

	if vs.notifier != nil && owner.Email != "" {
		n := &models.Notification{
			Kind:      models.NotifyVenueCreated,
			To:        owner.Email,
			Venue:     models.NewVenueSummary(created),
			CreatedAt: time.Now().UTC(),
		}
		if err := vs.notifier.Dispatch(ctx, n); err != nil {
			vs.logger.Error("failed to dispatch venue created email", "venue_id", created.ID, "error", err)
		}
	}
	return created, nil
}

func (vs *VenuesService) ListVenues(ctx context.Context, filter models.VenueFilter, accessToken string) ([]*models.Venue, int, error) {
	if filter.Offset < 0 || filter.Limit <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid offset or limit", ErrValidation)
	}
	return vs.venuesRepo.ListVenues(ctx, filter.Clamped(), accessToken)
}

func (vs *VenuesService) GetVenue(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid venue ID", ErrValidation)
	}
	return vs.venuesRepo.GetVenueByID(ctx, id)
}

// UpdateVenue replaces the whole editable record and returns the stored row so the
// dashboard can swap it in place.
func (vs *VenuesService) UpdateVenue(ctx context.Context, id uuid.UUID, in *models.VenueInput, img *VenueImage, accessToken string) (*models.Venue, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid venue ID", ErrValidation)
	}
	eventDate, err := validateVenueInput(in)
	if err != nil {
		return nil, err
	}

	existing, err := vs.venuesRepo.GetVenueByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var newURL *string
	if img != nil {
		url, err := vs.uploadImage(ctx, img)
		if err != nil {
			return nil, err
		}
		newURL = &url
	}

	updated, err := vs.venuesRepo.UpdateVenue(ctx, id, in.UpdateFields(eventDate, newURL), accessToken)
	if err != nil {
		if newURL != nil {
			vs.removeImage(ctx, *newURL)
		}
		return nil, err
	}

	if newURL != nil && existing.ImageURL != nil {
		vs.removeImage(ctx, *existing.ImageURL)
	}
	return updated, nil
}

func (vs *VenuesService) DeleteVenue(ctx context.Context, id uuid.UUID, accessToken string) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: invalid venue ID", ErrValidation)
	}

	existing, err := vs.venuesRepo.GetVenueByID(ctx, id)
	if err != nil {
		return err
	}
	if err := vs.venuesRepo.DeleteVenue(ctx, id, accessToken); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete venue: %w", err)
	}
	if existing.ImageURL != nil {
		vs.removeImage(ctx, *existing.ImageURL)
	}
	return nil
}
