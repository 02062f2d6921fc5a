package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Notifier hands a message off for delivery. Implementations must not block on delivery.
type Notifier interface {
	Dispatch(ctx context.Context, n *models.Notification) error
}

type ProfileReader interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type VenueReader interface {
	GetVenueByID(ctx context.Context, id uuid.UUID) (*models.Venue, error)
}

const (
	outcomeIgnored     = "ignored"
	outcomeConfirmed   = "confirmed"
	outcomeDuplicate   = "duplicate"
	outcomeBadMetadata = "metadata_error"
	outcomeStoreFailed = "persistence_error"
)

// WebhookResult reports what a verified delivery did.
type WebhookResult struct {
	EventID   string
	EventType string
	Ignored   bool
	Duplicate bool
	Booking   *models.ConfirmedBooking
}

type WebhookService struct {
	payments     PaymentProvider
	bookings     models.BookingRepo
	profiles     ProfileReader
	venues       VenueReader
	notifier     Notifier
	audit        models.StripeEventLog
	storeTimeout time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

type WebhookDeps struct {
	Payments PaymentProvider
	Bookings models.BookingRepo
	Profiles ProfileReader
	Venues   VenueReader
	Notifier Notifier
	// Audit is optional
	Audit        models.StripeEventLog
	StoreTimeout time.Duration
}

func NewWebhookService(deps WebhookDeps, logger *slog.Logger) *WebhookService {
	timeout := deps.StoreTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookService{
		payments:     deps.Payments,
		bookings:     deps.Bookings,
		profiles:     deps.Profiles,
		venues:       deps.Venues,
		notifier:     deps.Notifier,
		audit:        deps.Audit,
		storeTimeout: timeout,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
}

// HandleEvent verifies and applies one provider delivery. Nothing in the payload is
// trusted until the signature checks out.
func (ws *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ctx, span := ws.tracer.Start(ctx, "webhook.HandleEvent")
	defer span.End()

	event, err := ws.payments.VerifyEvent(payload, signature)
	if errors.Is(err, models.ErrMalformedEvent) {
		ws.logger.Error("signed webhook event carries an unreadable payload",
			"signature_present", signature != "",
			"error", err,
		)
		span.SetStatus(codes.Error, "malformed event")
		return nil, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	if err != nil {
		ws.logger.Warn("webhook signature verification failed",
			"security_event", true,
			"signature_present", signature != "",
			"error", err,
		)
		span.SetStatus(codes.Error, "signature rejected")
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	span.SetAttributes(
		attribute.String("stripe.event_id", event.ID),
		attribute.String("stripe.event_type", event.Type),
	)
	result := &WebhookResult{EventID: event.ID, EventType: event.Type}

	if event.Type != models.EventCheckoutSessionCompleted {
		ws.logger.Debug("ignoring webhook event", "event_id", event.ID, "type", event.Type)
		result.Ignored = true
		ws.recordAudit(ctx, event, outcomeIgnored)
		return result, nil
	}

	decoded, err := DecodeBookingMetadata(event.Metadata)
	if err == nil && event.PaymentIntentID == "" {
		err = fmt.Errorf("%w: session has no payment_intent", ErrMetadata)
	}
	if err != nil {
		ws.logger.Error("checkout session carries unusable booking metadata",
			"event_id", event.ID,
			"session_id", event.SessionID,
			"metadata", event.Metadata,
			"error", err,
		)
		span.SetStatus(codes.Error, "bad metadata")
		ws.recordAudit(ctx, event, outcomeBadMetadata)
		return nil, err
	}

	booking := &models.ConfirmedBooking{
		UserID:          decoded.UserID,
		VenueID:         decoded.VenueID,
		StartDate:       decoded.StartDate,
		EndDate:         decoded.EndDate,
		Guests:          decoded.Guests,
		TotalPrice:      decoded.TotalPrice,
		Status:          models.BookingStatusConfirmed,
		StripePaymentID: event.PaymentIntentID,
		CreatedAt:       ws.now().UTC(),
	}
	result.Booking = booking

	// the write outlives a dropped provider connection but not the store timeout
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ws.storeTimeout)
	defer cancel()

	err = ws.bookings.InsertBookingIfAbsent(writeCtx, booking)
	switch {
	case errors.Is(err, models.ErrDuplicateBooking):
		ws.logger.Info("booking already recorded, skipping",
			"event_id", event.ID,
			"stripe_payment_id", booking.StripePaymentID,
		)
		result.Duplicate = true
		ws.recordAudit(ctx, event, outcomeDuplicate)
		return result, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		ws.logger.Error("failed to save booking",
			"event_id", event.ID,
			"stripe_payment_id", booking.StripePaymentID,
			"error", err,
		)
		ws.recordAudit(ctx, event, outcomeStoreFailed)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: booking store timed out", ErrPersistence)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ws.logger.Info("booking confirmed",
		"event_id", event.ID,
		"booking_id", booking.ID,
		"stripe_payment_id", booking.StripePaymentID,
		"venue_id", booking.VenueID,
		"user_id", booking.UserID,
	)
	ws.recordAudit(ctx, event, outcomeConfirmed)
	ws.notifyConfirmed(ctx, booking, decoded.VenueName)
	return result, nil
}

// notifyConfirmed resolves the contact details and queues the confirmation. Failures are
// logged and never reach the caller.
func (ws *WebhookService) notifyConfirmed(ctx context.Context, booking *models.ConfirmedBooking, fallbackVenueName string) {
	if ws.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ws.storeTimeout)
	defer cancel()

	userID, err := uuid.Parse(booking.UserID)
	if err != nil {
		ws.logger.Error("cannot notify: booking user id is not a uuid", "user_id", booking.UserID)
		return
	}
	profile, err := ws.profiles.GetProfile(ctx, userID)
	if err != nil || profile == nil || profile.Email == "" {
		ws.logger.Error("cannot notify: failed to fetch user contact", "user_id", booking.UserID, "error", err)
		return
	}

	venueName := fallbackVenueName
	if venueID, err := uuid.Parse(booking.VenueID); err == nil && ws.venues != nil {
		if venue, err := ws.venues.GetVenueByID(ctx, venueID); err == nil && venue != nil && venue.Name != "" {
			venueName = venue.Name
		} else if err != nil {
			ws.logger.Warn("venue lookup failed, using name from checkout", "venue_id", booking.VenueID, "error", err)
		}
	}

	n := &models.Notification{
		Kind: models.NotifyBookingConfirmed,
		To:   profile.Email,
		Name: profile.DisplayName(),
		Booking: &models.BookingConfirmation{
			VenueName:        venueName,
			StartDate:        booking.StartDate,
			EndDate:          booking.EndDate,
			Guests:           booking.Guests,
			TotalPrice:       booking.TotalPrice,
			PaymentReference: booking.StripePaymentID,
		},
		CreatedAt: ws.now().UTC(),
	}
	if err := ws.notifier.Dispatch(ctx, n); err != nil {
		ws.logger.Error("failed to dispatch booking confirmation",
			"stripe_payment_id", booking.StripePaymentID,
			"error", err,
		)
	}
}

func (ws *WebhookService) recordAudit(ctx context.Context, event *models.PaymentEvent, outcome string) {
	if ws.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ws.storeTimeout)
	defer cancel()

	rec := &models.StripeEventRecord{
		EventID:    event.ID,
		Type:       event.Type,
		SessionID:  event.SessionID,
		Outcome:    outcome,
		ReceivedAt: ws.now().UTC(),
	}
	if err := ws.audit.RecordStripeEvent(ctx, rec); err != nil {
		ws.logger.Warn("failed to record stripe event", "event_id", event.ID, "error", err)
	}
}
