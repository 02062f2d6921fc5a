package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
)

// bookings.stripe_payment_id carries a UNIQUE constraint; PostgREST surfaces a violation
// as a 409 whose body holds the Postgres code 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

func (su *SupabaseRepo) InsertBookingIfAbsent(ctx context.Context, booking *ConfirmedBooking) error {
	row := map[string]interface{}{
		"user_id":           booking.UserID,
		"venue_id":          booking.VenueID,
		"start_date":        booking.StartDate.UTC().Format(time.RFC3339),
		"end_date":          booking.EndDate.UTC().Format(time.RFC3339),
		"guests":            booking.Guests,
		"total_price":       booking.TotalPrice,
		"status":            booking.Status,
		"stripe_payment_id": booking.StripePaymentID,
		"created_at":        booking.CreatedAt.UTC().Format(time.RFC3339),
	}

	data, _, err := su.privileged().
		From(BookingsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	var created []ConfirmedBooking
	if err := json.Unmarshal(data, &created); err == nil && len(created) > 0 {
		booking.ID = created[0].ID
	}
	return nil
}

func (su *SupabaseRepo) ListBookingsByUser(ctx context.Context, userID string) ([]*ConfirmedBooking, error) {
	data, _, err := su.privileged().
		From(BookingsTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("start_date", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	var bookings []*ConfirmedBooking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookings: %w", err)
	}
	return bookings, nil
}
