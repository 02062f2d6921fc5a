package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testSecret = "whsec_test_secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(payload string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	}).Header
}

const completedPayload = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2020-08-27",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_123",
      "object": "checkout.session",
      "payment_intent": "pi_123",
      "metadata": {
        "venueId": "v1",
        "venueName": "Hall A",
        "userId": "u1",
        "startDate": "2025-06-01T10:00",
        "endDate": "2025-06-01T14:00",
        "guests": "20",
        "totalPrice": "500"
      }
    }
  }
}`

func TestVerifyEventCompletedSession(t *testing.T) {
	sg := NewStripeGateway(StripeOptions{SecretKey: "sk_test", WebhookSecret: testSecret}, discardLogger())

	event, err := sg.VerifyEvent([]byte(completedPayload), sign(completedPayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "evt_1" || event.Type != models.EventCheckoutSessionCompleted {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.SessionID != "cs_test_123" || event.PaymentIntentID != "pi_123" {
		t.Errorf("session fields not extracted: %+v", event)
	}
	if event.Metadata["guests"] != "20" || len(event.Metadata) != 7 {
		t.Errorf("metadata not extracted: %v", event.Metadata)
	}
}

func TestVerifyEventMissingPaymentIntent(t *testing.T) {
	payload := strings.Replace(completedPayload, `"payment_intent": "pi_123"`, `"payment_intent": null`, 1)
	sg := NewStripeGateway(StripeOptions{WebhookSecret: testSecret}, discardLogger())

	event, err := sg.VerifyEvent([]byte(payload), sign(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.PaymentIntentID != "" {
		t.Errorf("expected no payment intent, got %q", event.PaymentIntentID)
	}
}

func TestVerifyEventRejectsBadSignatures(t *testing.T) {
	sg := NewStripeGateway(StripeOptions{WebhookSecret: testSecret}, discardLogger())
	good := sign(completedPayload)

	tests := []struct {
		name      string
		payload   string
		signature string
	}{
		{"missing header", completedPayload, ""},
		{"garbage header", completedPayload, "not-a-signature"},
		{"tampered body", strings.Replace(completedPayload, `"guests": "20"`, `"guests": "200"`, 1), good},
		{"wrong secret", completedPayload, webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload: []byte(completedPayload),
			Secret:  "whsec_other",
		}).Header},
		{"stale timestamp", completedPayload, webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   []byte(completedPayload),
			Secret:    testSecret,
			Timestamp: time.Now().Add(-time.Hour),
		}).Header},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sg.VerifyEvent([]byte(tt.payload), tt.signature)
			if err == nil {
				t.Fatal("expected verification to fail")
			}
			if errors.Is(err, models.ErrMalformedEvent) {
				t.Fatalf("signature failure reported as a malformed event: %v", err)
			}
		})
	}
}

func TestVerifyEventUnreadableSession(t *testing.T) {
	sg := NewStripeGateway(StripeOptions{WebhookSecret: testSecret}, discardLogger())
	payload := `{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_9","object":"checkout.session","payment_intent":"pi_9","metadata":"not-a-map"}}}`

	_, err := sg.VerifyEvent([]byte(payload), sign(payload))
	if !errors.Is(err, models.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestVerifyEventWithoutSecret(t *testing.T) {
	sg := NewStripeGateway(StripeOptions{}, discardLogger())
	if _, err := sg.VerifyEvent([]byte(completedPayload), sign(completedPayload)); err == nil {
		t.Fatal("expected an error when no secret is configured")
	}
}

func TestVerifyEventPassesOtherTypesThrough(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_9","object":"payment_intent"}}}`
	sg := NewStripeGateway(StripeOptions{WebhookSecret: testSecret}, discardLogger())

	event, err := sg.VerifyEvent([]byte(payload), sign(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != "payment_intent.created" || event.SessionID != "" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"cs_test_a1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_a1"}`)
	}))
	defer srv.Close()

	sg := NewStripeGateway(StripeOptions{SecretKey: "sk_test", BaseURL: srv.URL}, discardLogger())
	session, err := sg.CreateCheckoutSession(context.Background(), &models.CheckoutRequest{
		Currency:    "usd",
		ProductName: "Booking: Hall A",
		Description: "From 2025-06-01T10:00 to 2025-06-01T14:00, 20 guests",
		UnitAmount:  50000,
		Quantity:    1,
		Metadata:    map[string]string{"venueId": "v1", "guests": "20"},
		SuccessURL:  "http://localhost:3000/venues/v1?success=true",
		CancelURL:   "http://localhost:3000/venues/v1?canceled=true",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_test_a1" || session.URL == "" {
		t.Errorf("unexpected session: %+v", session)
	}

	want := map[string]string{
		"mode":                                          "payment",
		"payment_method_types[0]":                       "card",
		"line_items[0][quantity]":                       "1",
		"line_items[0][price_data][currency]":           "usd",
		"line_items[0][price_data][unit_amount]":        "50000",
		"line_items[0][price_data][product_data][name]": "Booking: Hall A",
		"metadata[venueId]":                             "v1",
		"metadata[guests]":                              "20",
		"success_url":                                   "http://localhost:3000/venues/v1?success=true",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, form[k], v)
		}
	}
}

func TestCreateCheckoutSessionProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"Invalid currency: xyz"}}`)
	}))
	defer srv.Close()

	sg := NewStripeGateway(StripeOptions{SecretKey: "sk_test", BaseURL: srv.URL}, discardLogger())
	_, err := sg.CreateCheckoutSession(context.Background(), &models.CheckoutRequest{Currency: "xyz", Quantity: 1, UnitAmount: 100})
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "Invalid currency: xyz" {
		t.Errorf("error = %q", err.Error())
	}
}
