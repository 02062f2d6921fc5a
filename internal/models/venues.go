package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxVenueImageBytes = 5 << 20

type Venue struct {
	ID          uuid.UUID  `json:"id"`
	OwnerUserID uuid.UUID  `json:"owner_user_id"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Capacity    int        `json:"capacity"`
	Phone       *string    `json:"phone"`
	ImageURL    *string    `json:"image_url"`
	EventDate   *time.Time `json:"event_date"`
	CreatedAt   time.Time  `json:"created_at"`
}

// VenueInput is bound from the multipart admin form.
type VenueInput struct {
	Name      string `form:"name" validate:"required"`
	Address   string `form:"address" validate:"required"`
	Capacity  int    `form:"capacity" validate:"required,gt=0"`
	Phone     string `form:"phone"`
	EventDate string `form:"event_date"`
}

// MaxVenuePageSize caps VenueFilter.Limit.
const MaxVenuePageSize = 100

// VenueFilter narrows ListVenues. A nil OwnerID lists every venue.
type VenueFilter struct {
	OwnerID *uuid.UUID
	Offset  int
	Limit   int
}

// Clamped returns f with Limit capped at MaxVenuePageSize. A non-positive limit
// becomes 1.
func (f VenueFilter) Clamped() VenueFilter {
	if f.Limit <= 0 {
		f.Limit = 1
	}
	if f.Limit > MaxVenuePageSize {
		f.Limit = MaxVenuePageSize
	}
	return f
}

// ParseEventDate accepts RFC3339 or a bare YYYY-MM-DD. An empty string means no date.
func ParseEventDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid event_date %q", s)
}

// ToRow renders the columns written on insert.
func (v *Venue) ToRow() map[string]interface{} {
	row := map[string]interface{}{
		"id":            v.ID,
		"owner_user_id": v.OwnerUserID,
		"name":          v.Name,
		"address":       v.Address,
		"capacity":      v.Capacity,
		"phone":         v.Phone,
		"image_url":     v.ImageURL,
		"event_date":    nil,
		"created_at":    v.CreatedAt.UTC().Format(time.RFC3339),
	}
	if v.EventDate != nil {
		row["event_date"] = v.EventDate.UTC().Format(time.RFC3339)
	}
	return row
}

// UpdateFields builds a partial update from the form. imageURL is only set when a new
// image was uploaded.
func (in *VenueInput) UpdateFields(eventDate *time.Time, imageURL *string) map[string]interface{} {
	fields := map[string]interface{}{
		"name":     strings.TrimSpace(in.Name),
		"address":  strings.TrimSpace(in.Address),
		"capacity": in.Capacity,
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		fields["phone"] = phone
	} else {
		fields["phone"] = nil
	}
	if eventDate != nil {
		fields["event_date"] = eventDate.UTC().Format(time.RFC3339)
	} else {
		fields["event_date"] = nil
	}
	if imageURL != nil {
		fields["image_url"] = *imageURL
	}
	return fields
}
