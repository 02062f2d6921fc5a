package models

import "time"

type NotificationKind string

const (
	NotifyBookingConfirmed NotificationKind = "booking.confirmed"
	NotifyUserRegistered   NotificationKind = "user.registered"
	NotifyVenueCreated     NotificationKind = "venue.created"
)

// Notification is the message handed to the notifier and, when a broker is configured,
// the JSON body published to it.
type Notification struct {
	Kind      NotificationKind     `json:"kind"`
	To        string               `json:"to"`
	Name      string               `json:"name,omitempty"`
	Booking   *BookingConfirmation `json:"booking,omitempty"`
	Venue     *VenueSummary        `json:"venue,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type BookingConfirmation struct {
	VenueName        string    `json:"venue_name"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Guests           int       `json:"guests"`
	TotalPrice       float64   `json:"total_price"`
	PaymentReference string    `json:"payment_reference"`
}

type VenueSummary struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Capacity  int    `json:"capacity"`
	Phone     string `json:"phone,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	EventDate string `json:"event_date,omitempty"`
}

func NewVenueSummary(v *Venue) *VenueSummary {
	s := &VenueSummary{
		Name:     v.Name,
		Address:  v.Address,
		Capacity: v.Capacity,
	}
	if v.Phone != nil {
		s.Phone = *v.Phone
	}
	if v.ImageURL != nil {
		s.ImageURL = *v.ImageURL
	}
	if v.EventDate != nil {
		s.EventDate = v.EventDate.Format("2006-01-02")
	}
	return s
}
