package services

import (
	"context"
	"fmt"

	"github.com/joshua-takyi/venuebook/internal/models"
)

// BookingsService is the read side of confirmed bookings. Writes only happen in
// WebhookService.
type BookingsService struct {
	bookings models.BookingRepo
}

func NewBookingsService(bookings models.BookingRepo) *BookingsService {
	return &BookingsService{bookings: bookings}
}

func (bs *BookingsService) ListForUser(ctx context.Context, identity *models.Identity) ([]*models.ConfirmedBooking, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: invalid identity", ErrAuth)
	}
	bookings, err := bs.bookings.ListBookingsByUser(ctx, identity.UserID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []*models.ConfirmedBooking{}
	}
	return bookings, nil
}
