package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPayments struct {
	mu         sync.Mutex
	requests   []*models.CheckoutRequest
	CreateFunc func(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutSession, error)
	VerifyFunc func(payload []byte, signature string) (*models.PaymentEvent, error)
}

func (m *mockPayments) CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutSession, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &models.CheckoutSession{ID: "cs_test_123"}, nil
}

func (m *mockPayments) VerifyEvent(payload []byte, signature string) (*models.PaymentEvent, error) {
	return m.VerifyFunc(payload, signature)
}

func (m *mockPayments) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type mockIdentity struct {
	ResolveFunc func(ctx context.Context, credential string) (*models.Identity, error)
}

func (m *mockIdentity) ResolveUser(ctx context.Context, credential string) (*models.Identity, error) {
	return m.ResolveFunc(ctx, credential)
}

// memoryBookings enforces the payment reference uniqueness the real stores enforce.
type memoryBookings struct {
	mu       sync.Mutex
	byRef    map[string]*models.ConfirmedBooking
	inserts  int
	InsertFn func(ctx context.Context, b *models.ConfirmedBooking) error
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{byRef: map[string]*models.ConfirmedBooking{}}
}

func (m *memoryBookings) InsertBookingIfAbsent(ctx context.Context, b *models.ConfirmedBooking) error {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRef[b.StripePaymentID]; ok {
		return models.ErrDuplicateBooking
	}
	m.inserts++
	b.ID = uuid.NewString()
	copied := *b
	m.byRef[b.StripePaymentID] = &copied
	return nil
}

func (m *memoryBookings) ListBookingsByUser(ctx context.Context, userID string) ([]*models.ConfirmedBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ConfirmedBooking
	for _, b := range m.byRef {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byRef)
}

type mockNotifier struct {
	mu           sync.Mutex
	sent         []*models.Notification
	DispatchFunc func(ctx context.Context, n *models.Notification) error
}

func (m *mockNotifier) Dispatch(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, n)
	}
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockProfiles struct {
	GetFunc func(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

func (m *mockProfiles) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return m.GetFunc(ctx, id)
}

type mockVenues struct {
	venues map[uuid.UUID]*models.Venue
}

func (m *mockVenues) GetVenueByID(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	if v, ok := m.venues[id]; ok {
		return v, nil
	}
	return nil, models.ErrNotFound
}

type mockAudit struct {
	mu      sync.Mutex
	records []*models.StripeEventRecord
}

func (m *mockAudit) RecordStripeEvent(ctx context.Context, rec *models.StripeEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}
