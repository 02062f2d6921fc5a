package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Metadata keys carried on the checkout session. The provider only transports strings.
const (
	MetaVenueID    = "venueId"
	MetaVenueName  = "venueName"
	MetaUserID     = "userId"
	MetaStartDate  = "startDate"
	MetaEndDate    = "endDate"
	MetaGuests     = "guests"
	MetaTotalPrice = "totalPrice"
)

var metadataKeys = []string{
	MetaVenueID, MetaVenueName, MetaUserID, MetaStartDate, MetaEndDate, MetaGuests, MetaTotalPrice,
}

// acceptedDateLayouts lists what the booking form and the provider echo back. Values
// without a zone are read as UTC.
var acceptedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// BookingIntent is the request-scoped booking that rides on the checkout session.
type BookingIntent struct {
	VenueID    string
	VenueName  string
	UserID     string
	StartDate  string
	EndDate    string
	Guests     int
	TotalPrice float64
}

// DecodedBooking is a BookingIntent read back from provider metadata with every field parsed.
type DecodedBooking struct {
	VenueID    string
	VenueName  string
	UserID     string
	StartDate  time.Time
	EndDate    time.Time
	Guests     int
	TotalPrice float64
}

func parseBookingTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// MinorUnits converts a major unit price to the integer amount the provider charges.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// Validate enforces every intent invariant, including the requesting user.
func (b *BookingIntent) Validate() error {
	if err := b.ValidateBooking(); err != nil {
		return err
	}
	if strings.TrimSpace(b.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	return nil
}

// ValidateBooking checks the fields the caller supplies. It reports the first problem
// found.
func (b *BookingIntent) ValidateBooking() error {
	if strings.TrimSpace(b.VenueID) == "" {
		return fmt.Errorf("%w: venueId is required", ErrValidation)
	}
	if strings.TrimSpace(b.VenueName) == "" {
		return fmt.Errorf("%w: venueName is required", ErrValidation)
	}
	if b.Guests <= 0 {
		return fmt.Errorf("%w: guests must be greater than zero", ErrValidation)
	}
	if b.TotalPrice <= 0 || math.IsNaN(b.TotalPrice) || math.IsInf(b.TotalPrice, 0) {
		return fmt.Errorf("%w: totalPrice must be greater than zero", ErrValidation)
	}
	if MinorUnits(b.TotalPrice) <= 0 {
		return fmt.Errorf("%w: totalPrice is below the smallest chargeable amount", ErrValidation)
	}
	start, err := parseBookingTime(b.StartDate)
	if err != nil {
		return fmt.Errorf("%w: startDate: %v", ErrValidation, err)
	}
	end, err := parseBookingTime(b.EndDate)
	if err != nil {
		return fmt.Errorf("%w: endDate: %v", ErrValidation, err)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: endDate must be after startDate", ErrValidation)
	}
	return nil
}

// Metadata renders the seven string fields attached to the checkout session.
func (b *BookingIntent) Metadata() map[string]string {
	return map[string]string{
		MetaVenueID:    b.VenueID,
		MetaVenueName:  b.VenueName,
		MetaUserID:     b.UserID,
		MetaStartDate:  b.StartDate,
		MetaEndDate:    b.EndDate,
		MetaGuests:     strconv.Itoa(b.Guests),
		MetaTotalPrice: strconv.FormatFloat(b.TotalPrice, 'f', -1, 64),
	}
}

// DecodeBookingMetadata parses provider metadata back into a booking. Any missing or
// malformed field is an ErrMetadata.
func DecodeBookingMetadata(meta map[string]string) (*DecodedBooking, error) {
	var missing []string
	for _, key := range metadataKeys {
		if strings.TrimSpace(meta[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMetadata, strings.Join(missing, ", "))
	}

	guests, err := strconv.Atoi(strings.TrimSpace(meta[MetaGuests]))
	if err != nil || guests <= 0 {
		return nil, fmt.Errorf("%w: guests %q is not a positive integer", ErrMetadata, meta[MetaGuests])
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(meta[MetaTotalPrice]), 64)
	if err != nil || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%w: totalPrice %q is not a positive number", ErrMetadata, meta[MetaTotalPrice])
	}
	start, err := parseBookingTime(meta[MetaStartDate])
	if err != nil {
		return nil, fmt.Errorf("%w: startDate: %v", ErrMetadata, err)
	}
	end, err := parseBookingTime(meta[MetaEndDate])
	if err != nil {
		return nil, fmt.Errorf("%w: endDate: %v", ErrMetadata, err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: endDate must be after startDate", ErrMetadata)
	}

	return &DecodedBooking{
		VenueID:    meta[MetaVenueID],
		VenueName:  meta[MetaVenueName],
		UserID:     meta[MetaUserID],
		StartDate:  start,
		EndDate:    end,
		Guests:     guests,
		TotalPrice: price,
	}, nil
}
