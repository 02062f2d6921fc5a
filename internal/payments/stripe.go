package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway is the only code that talks to Stripe. It holds its own API client
// rather than setting the package level stripe.Key.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL overrides the API endpoint, e.g. for stripe-mock.
	BaseURL string
}

func NewStripeGateway(opts StripeOptions, logger *slog.Logger) *StripeGateway {
	var backends *stripe.Backends
	if opts.BaseURL != "" {
		backends = stripe.NewBackendsWithConfig(&stripe.BackendConfig{
			URL:               stripe.String(opts.BaseURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		})
	}
	return &StripeGateway{
		api:           client.New(opts.SecretKey, backends),
		webhookSecret: opts.WebhookSecret,
		logger:        logger,
	}
}

// CreateCheckoutSession mints a hosted, card-only, single line item session.
func (sg *StripeGateway) CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	session, err := sg.api.CheckoutSessions.New(params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.New(providerMessage(err))
	}
	return &models.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// providerMessage keeps the human readable part of a Stripe error.
func providerMessage(err error) string {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return err.Error()
}

// VerifyEvent checks the Stripe-Signature header against the endpoint secret and only
// then parses the payload. The API version pin is not enforced so dashboard upgrades
// do not break delivery.
func (sg *StripeGateway) VerifyEvent(payload []byte, signature string) (*models.PaymentEvent, error) {
	if sg.webhookSecret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, sg.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &models.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type != models.EventCheckoutSessionCompleted {
		return out, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", models.ErrMalformedEvent, event.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: failed to parse checkout session: %v", models.ErrMalformedEvent, err)
	}
	out.SessionID = session.ID
	out.Metadata = session.Metadata
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	return out, nil
}
