package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BookingsPaymentIndexSQL backs ON CONFLICT (stripe_payment_id). It is also shipped as a
// Supabase migration because that table is not created by this service.
const BookingsPaymentIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS bookings_stripe_payment_id_key ON bookings (stripe_payment_id);`

const bookingsSchema = `
CREATE TABLE IF NOT EXISTS bookings (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id           TEXT NOT NULL,
	venue_id          TEXT NOT NULL,
	start_date        TIMESTAMPTZ NOT NULL,
	end_date          TIMESTAMPTZ NOT NULL,
	guests            INTEGER NOT NULL CHECK (guests > 0),
	total_price       NUMERIC(12,2) NOT NULL CHECK (total_price > 0),
	status            TEXT NOT NULL DEFAULT 'confirmed',
	stripe_payment_id TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bookings_user_id_idx ON bookings (user_id);
` + BookingsPaymentIndexSQL

// EnsureSchema creates the bookings table and its unique payment index. A table that
// already exists still gets the index.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, bookingsSchema); err != nil {
		return fmt.Errorf("create bookings schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) InsertBookingIfAbsent(ctx context.Context, booking *ConfirmedBooking) error {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO bookings (user_id, venue_id, start_date, end_date, guests, total_price, status, stripe_payment_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (stripe_payment_id) DO NOTHING
		 RETURNING id::text`,
		booking.UserID, booking.VenueID, booking.StartDate, booking.EndDate, booking.Guests,
		booking.TotalPrice, string(booking.Status), booking.StripePaymentID, booking.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateBooking
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	booking.ID = id
	return nil
}

func (r *PostgresRepo) ListBookingsByUser(ctx context.Context, userID string) ([]*ConfirmedBooking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, user_id, venue_id, start_date, end_date, guests, total_price::float8, status, stripe_payment_id, created_at
		 FROM bookings
		 WHERE user_id = $1
		 ORDER BY start_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*ConfirmedBooking
	for rows.Next() {
		var b ConfirmedBooking
		var status string
		if err := rows.Scan(&b.ID, &b.UserID, &b.VenueID, &b.StartDate, &b.EndDate, &b.Guests,
			&b.TotalPrice, &status, &b.StripePaymentID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.Status = BookingStatus(status)
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}
