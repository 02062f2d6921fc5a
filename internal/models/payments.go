package models

import "errors"

// ErrMalformedEvent is returned by a payment provider for an event whose signature
// verified but whose payload is not the expected object.
var ErrMalformedEvent = errors.New("malformed event")

// EventCheckoutSessionCompleted is the only provider event that finalizes a booking.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// CheckoutRequest describes a single line item hosted checkout.
type CheckoutRequest struct {
	Currency    string
	ProductName string
	Description string
	UnitAmount  int64
	Quantity    int64
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url,omitempty"`
}

// PaymentEvent is a verified provider event reduced to the fields the receiver reads.
type PaymentEvent struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	Metadata        map[string]string
}
