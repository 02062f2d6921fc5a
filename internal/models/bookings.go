package models

import (
	"context"
	"time"
)

type BookingStatus string

// Confirmed is the only status this service writes.
const BookingStatusConfirmed BookingStatus = "confirmed"

// ConfirmedBooking is written once per paid checkout session. StripePaymentID is the
// idempotency key and carries a unique constraint in every store.
type ConfirmedBooking struct {
	ID              string        `json:"id,omitempty" bson:"-"`
	UserID          string        `json:"user_id" bson:"user_id"`
	VenueID         string        `json:"venue_id" bson:"venue_id"`
	StartDate       time.Time     `json:"start_date" bson:"start_date"`
	EndDate         time.Time     `json:"end_date" bson:"end_date"`
	Guests          int           `json:"guests" bson:"guests"`
	TotalPrice      float64       `json:"total_price" bson:"total_price"`
	Status          BookingStatus `json:"status" bson:"status"`
	StripePaymentID string        `json:"stripe_payment_id" bson:"stripe_payment_id"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
}

type BookingRepo interface {
	// InsertBookingIfAbsent returns ErrDuplicateBooking when a booking with the same
	// StripePaymentID already exists. The check is made by the store itself.
	InsertBookingIfAbsent(ctx context.Context, booking *ConfirmedBooking) error
	ListBookingsByUser(ctx context.Context, userID string) ([]*ConfirmedBooking, error)
}
