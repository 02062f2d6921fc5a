package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joshua-takyi/venuebook/internal/services"

// PaymentProvider mints hosted checkout sessions and verifies the events it sends back.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutSession, error)
	VerifyEvent(payload []byte, signature string) (*models.PaymentEvent, error)
}

// IdentityResolver turns a bearer credential into the caller's identity.
type IdentityResolver interface {
	ResolveUser(ctx context.Context, credential string) (*models.Identity, error)
}

// CheckoutInput is the booking form posted by the browser.
type CheckoutInput struct {
	VenueID    string  `json:"venueId"`
	VenueName  string  `json:"venueName"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	Guests     int     `json:"guests"`
	TotalPrice float64 `json:"totalPrice"`
}

type CheckoutOptions struct {
	FrontendURL string
	Currency    string
	Timeout     time.Duration
}

type CheckoutService struct {
	payments PaymentProvider
	identity IdentityResolver
	opts     CheckoutOptions
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewCheckoutService(payments PaymentProvider, identity IdentityResolver, opts CheckoutOptions, logger *slog.Logger) *CheckoutService {
	// a comma separated allow-list redirects to its first entry
	base, _, _ := strings.Cut(opts.FrontendURL, ",")
	opts.FrontendURL = strings.TrimRight(strings.TrimSpace(base), "/")
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &CheckoutService{
		payments: payments,
		identity: identity,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// CreateSession validates the booking, resolves the caller and asks the provider for a
// hosted checkout session. origin is the browser's Origin header and may be empty.
func (cs *CheckoutService) CreateSession(ctx context.Context, credential, origin string, in *CheckoutInput) (*models.CheckoutSession, error) {
	ctx, span := cs.tracer.Start(ctx, "checkout.CreateSession")
	defer span.End()

	if in == nil {
		return nil, fmt.Errorf("%w: request body is required", ErrValidation)
	}

	intent := &BookingIntent{
		VenueID:    strings.TrimSpace(in.VenueID),
		VenueName:  strings.TrimSpace(in.VenueName),
		StartDate:  strings.TrimSpace(in.StartDate),
		EndDate:    strings.TrimSpace(in.EndDate),
		Guests:     in.Guests,
		TotalPrice: in.TotalPrice,
	}
	if err := intent.ValidateBooking(); err != nil {
		span.SetStatus(codes.Error, "invalid booking")
		return nil, err
	}

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: missing bearer credential", ErrAuth)
	}
	identity, err := cs.identity.ResolveUser(ctx, credential)
	if err != nil || identity == nil {
		cs.logger.Info("checkout rejected: credential did not resolve", "error", err)
		span.SetStatus(codes.Error, "unauthorized")
		return nil, fmt.Errorf("%w: invalid credential", ErrAuth)
	}
	if identity.UserID == uuid.Nil {
		span.SetStatus(codes.Error, "unauthorized")
		return nil, fmt.Errorf("%w: credential has no user id", ErrAuth)
	}
	intent.UserID = identity.UserID.String()
	if err := intent.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid booking")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("venue.id", intent.VenueID),
		attribute.String("user.id", intent.UserID),
		attribute.Int("booking.guests", intent.Guests),
	)

	base := strings.TrimRight(strings.TrimSpace(origin), "/")
	if base == "" {
		base = strings.TrimRight(cs.opts.FrontendURL, "/")
	}

	req := &models.CheckoutRequest{
		Currency:    cs.opts.Currency,
		ProductName: "Booking: " + intent.VenueName,
		Description: fmt.Sprintf("From %s to %s, %d guests", intent.StartDate, intent.EndDate, intent.Guests),
		UnitAmount:  MinorUnits(intent.TotalPrice),
		Quantity:    1,
		Metadata:    intent.Metadata(),
		SuccessURL:  fmt.Sprintf("%s/venues/%s?success=true", base, intent.VenueID),
		CancelURL:   fmt.Sprintf("%s/venues/%s?canceled=true", base, intent.VenueID),
	}

	callCtx, cancel := context.WithTimeout(ctx, cs.opts.Timeout)
	defer cancel()

	session, err := cs.payments.CreateCheckoutSession(callCtx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider error")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			cs.logger.Error("payment provider timed out", "venue_id", intent.VenueID, "timeout", cs.opts.Timeout)
			return nil, fmt.Errorf("%w: payment provider timed out", ErrUpstream)
		}
		cs.logger.Error("payment provider rejected checkout session", "venue_id", intent.VenueID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if session == nil || session.ID == "" {
		span.SetStatus(codes.Error, "empty session")
		return nil, fmt.Errorf("%w: provider returned no session id", ErrUpstream)
	}

	span.SetAttributes(attribute.String("checkout.session_id", session.ID))
	cs.logger.Info("checkout session created",
		"session_id", session.ID,
		"venue_id", intent.VenueID,
		"user_id", intent.UserID,
		"amount", req.UnitAmount,
	)
	return session, nil
}
