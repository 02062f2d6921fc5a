package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joshua-takyi/venuebook/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []*Email
	failures int
	calls    int
}

func (m *fakeMailer) Send(ctx context.Context, email *Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("mailgun: 503 service unavailable")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) snapshot() (calls, sent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, len(m.sent)
}

func bookingNotification() *models.Notification {
	return &models.Notification{
		Kind: models.NotifyBookingConfirmed,
		To:   "guest@example.com",
		Name: "Grace",
		Booking: &models.BookingConfirmation{
			VenueName:        "Hall A",
			StartDate:        time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			EndDate:          time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
			Guests:           20,
			TotalPrice:       500,
			PaymentReference: "pi_123",
		},
	}
}

func TestRenderBookingConfirmation(t *testing.T) {
	email, err := Render(bookingNotification())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.To != "guest@example.com" || email.Subject != "Your booking at Hall A is confirmed" {
		t.Errorf("unexpected header fields: %+v", email)
	}
	for _, want := range []string{"Hi Grace", "Hall A", "Jun 1, 2025 10:00 AM UTC", "500.00", "pi_123", "Guests:    20"} {
		if !strings.Contains(email.Text, want) {
			t.Errorf("text body missing %q:\n%s", want, email.Text)
		}
	}
	if !strings.Contains(email.HTML, "<td>pi_123</td>") {
		t.Errorf("html body missing reference: %s", email.HTML)
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	n := &models.Notification{
		Kind:  models.NotifyVenueCreated,
		To:    "admin@example.com",
		Venue: &models.VenueSummary{Name: "<script>x</script>", Address: "1 Main St", Capacity: 10},
	}
	email, err := Render(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(email.HTML, "<script>") {
		t.Errorf("html body not escaped: %s", email.HTML)
	}
	if !strings.Contains(email.Text, "Phone:    N/A") {
		t.Errorf("missing phone fallback:\n%s", email.Text)
	}
}

func TestRenderWelcomeDefaultsName(t *testing.T) {
	email, err := Render(&models.Notification{Kind: models.NotifyUserRegistered, To: "new@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(email.Text, "Hi there,") {
		t.Errorf("unexpected greeting: %q", email.Text)
	}
}

func TestRenderRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		n    *models.Notification
	}{
		{"nil", nil},
		{"no recipient", &models.Notification{Kind: models.NotifyUserRegistered}},
		{"unknown kind", &models.Notification{Kind: "booking.cancelled", To: "a@example.com"}},
		{"booking without details", &models.Notification{Kind: models.NotifyBookingConfirmed, To: "a@example.com"}},
		{"venue without details", &models.Notification{Kind: models.NotifyVenueCreated, To: "a@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.n)
			if !IsPermanent(err) {
				t.Fatalf("expected a permanent error, got %v", err)
			}
		})
	}
}

func fastDispatcher(m Mailer, attempts int) *Dispatcher {
	return NewDispatcher(m, DispatcherOptions{
		Workers:     1,
		QueueSize:   4,
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}, discardLogger())
}

func TestDispatcherRetriesUntilSent(t *testing.T) {
	m := &fakeMailer{failures: 2}
	d := fastDispatcher(m, 5)

	if err := d.Dispatch(context.Background(), bookingNotification()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	calls, sent := m.snapshot()
	if calls != 3 || sent != 1 {
		t.Fatalf("calls=%d sent=%d, want 3 and 1", calls, sent)
	}
}

func TestDispatcherGivesUp(t *testing.T) {
	m := &fakeMailer{failures: 100}
	d := fastDispatcher(m, 3)

	_ = d.Dispatch(context.Background(), bookingNotification())
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if calls, sent := m.snapshot(); calls != 3 || sent != 0 {
		t.Fatalf("calls=%d sent=%d, want 3 and 0", calls, sent)
	}
}

func TestDispatcherDropsUnrenderable(t *testing.T) {
	m := &fakeMailer{}
	d := fastDispatcher(m, 3)

	_ = d.Dispatch(context.Background(), &models.Notification{Kind: models.NotifyBookingConfirmed, To: "a@example.com"})
	_ = d.Close(context.Background())
	if calls, _ := m.snapshot(); calls != 0 {
		t.Fatalf("mailer should not be called, got %d calls", calls)
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := fastDispatcher(&fakeMailer{}, 1)
	_ = d.Close(context.Background())

	if err := d.Dispatch(context.Background(), bookingNotification()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

type blockingMailer struct{ release chan struct{} }

func (m *blockingMailer) Send(ctx context.Context, email *Email) error {
	<-m.release
	return nil
}

func TestDispatcherQueueFull(t *testing.T) {
	m := &blockingMailer{release: make(chan struct{})}
	d := NewDispatcher(m, DispatcherOptions{Workers: 1, QueueSize: 1}, discardLogger())
	defer func() {
		close(m.release)
		_ = d.Close(context.Background())
	}()

	var full bool
	for i := 0; i < 10; i++ {
		if err := d.Dispatch(context.Background(), bookingNotification()); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatal("expected the bounded queue to report full")
	}
}

func TestBackoffDoubles(t *testing.T) {
	d := &Dispatcher{opts: DispatcherOptions{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := d.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}
func (a *fakeAck) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

type fakePublisher struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.published = append(p.published, msg)
	return nil
}

func newTestConsumer(m Mailer, pub *fakePublisher) *Consumer {
	opts := ConsumerOptions{Exchange: "venuebook.events", Queue: "venuebook.notifications", MaxAttempts: 3, RetryDelay: time.Millisecond}
	opts.defaults()
	return &Consumer{mailer: m, opts: opts, logger: discardLogger(), pub: pub}
}

func delivery(t *testing.T, ack *fakeAck, n *models.Notification, attempts int) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	d := amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   string(n.Kind),
		ContentType:  "application/json",
		Body:         body,
		Headers:      amqp.Table{},
	}
	if attempts > 0 {
		d.Headers[AttemptHeader] = int32(attempts)
	}
	return d
}

func TestConsumerAcksSent(t *testing.T) {
	m := &fakeMailer{}
	ack := &fakeAck{}
	c := newTestConsumer(m, &fakePublisher{})

	c.handle(context.Background(), delivery(t, ack, bookingNotification(), 0))
	if ack.acked != 1 || ack.nacked != 0 {
		t.Fatalf("acked=%d nacked=%d", ack.acked, ack.nacked)
	}
	if _, sent := m.snapshot(); sent != 1 {
		t.Fatal("email not sent")
	}
}

func TestConsumerRepublishesWithAttemptCount(t *testing.T) {
	m := &fakeMailer{failures: 1}
	ack := &fakeAck{}
	pub := &fakePublisher{}
	c := newTestConsumer(m, pub)

	c.handle(context.Background(), delivery(t, ack, bookingNotification(), 1))
	if len(pub.published) != 1 {
		t.Fatalf("expected one republish, got %d", len(pub.published))
	}
	if got := attemptsSoFar(pub.published[0].Headers); got != 2 {
		t.Errorf("attempt header = %d, want 2", got)
	}
	if pub.keys[0] != string(models.NotifyBookingConfirmed) {
		t.Errorf("routing key = %s", pub.keys[0])
	}
	if ack.acked != 1 {
		t.Errorf("original delivery should be acked after republish")
	}
}

func TestConsumerDeadLettersAfterMaxAttempts(t *testing.T) {
	m := &fakeMailer{failures: 1}
	ack := &fakeAck{}
	pub := &fakePublisher{}
	c := newTestConsumer(m, pub)

	c.handle(context.Background(), delivery(t, ack, bookingNotification(), 2))
	if ack.nacked != 1 || ack.requeued != 0 {
		t.Fatalf("expected a dead-letter nack, got nacked=%d requeued=%d", ack.nacked, ack.requeued)
	}
	if len(pub.published) != 0 {
		t.Fatal("must not republish past the attempt limit")
	}
}

func TestConsumerRequeuesWhenRepublishFails(t *testing.T) {
	ack := &fakeAck{}
	c := newTestConsumer(&fakeMailer{failures: 1}, &fakePublisher{err: errors.New("channel closed")})

	c.handle(context.Background(), delivery(t, ack, bookingNotification(), 0))
	if ack.requeued != 1 {
		t.Fatalf("expected requeue, got %+v", ack)
	}
}

func TestConsumerDeadLettersGarbage(t *testing.T) {
	ack := &fakeAck{}
	c := newTestConsumer(&fakeMailer{}, &fakePublisher{})

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
	if ack.nacked != 1 || ack.requeued != 0 {
		t.Fatalf("expected dead-letter, got %+v", ack)
	}
}

func TestQueuePublisherDispatch(t *testing.T) {
	pub := &fakePublisher{}
	p := &QueuePublisher{ch: pub, exchange: "venuebook.events"}

	if err := p.Dispatch(context.Background(), bookingNotification()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 1 || pub.keys[0] != "booking.confirmed" {
		t.Fatalf("unexpected publish: %v", pub.keys)
	}
	msg := pub.published[0]
	if msg.DeliveryMode != amqp.Persistent || msg.MessageId == "" {
		t.Errorf("message should be persistent with an id: %+v", msg)
	}
	var decoded models.Notification
	if err := json.Unmarshal(msg.Body, &decoded); err != nil || decoded.Booking.PaymentReference != "pi_123" {
		t.Errorf("body did not round trip: %v %+v", err, decoded)
	}
}
