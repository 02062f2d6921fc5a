package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AttemptHeader counts how many times a message has already failed delivery.
const AttemptHeader = "x-attempt"

var routingKeys = []string{
	string(models.NotifyBookingConfirmed),
	string(models.NotifyUserRegistered),
	string(models.NotifyVenueCreated),
}

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueuePublisher hands notifications to the broker. The worker in cmd/notifier does
// the sending.
type QueuePublisher struct {
	mu       sync.Mutex
	ch       amqpPublisher
	closer   func() error
	exchange string
}

func NewQueuePublisher(conn *amqp.Connection, exchange string) (*QueuePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &QueuePublisher{ch: ch, closer: ch.Close, exchange: exchange}, nil
}

func (p *QueuePublisher) Dispatch(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, string(n.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *QueuePublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

type ConsumerOptions struct {
	Exchange    string
	Queue       string
	Prefetch    int
	MaxAttempts int
	// RetryDelay is the pause before a failed message is published again.
	RetryDelay  time.Duration
	SendTimeout time.Duration
}

// Consumer is the notification worker. Failed sends are republished with AttemptHeader
// incremented; once MaxAttempts is reached the message is rejected into the dead letter
// queue.
type Consumer struct {
	mailer Mailer
	opts   ConsumerOptions
	logger *slog.Logger

	ch  *amqp.Channel
	pub amqpPublisher
}

func (o *ConsumerOptions) defaults() {
	if o.Prefetch <= 0 {
		o.Prefetch = 8
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 15 * time.Second
	}
}

func (o ConsumerOptions) deadLetterExchange() string { return o.Exchange + ".dlx" }
func (o ConsumerOptions) deadLetterQueue() string    { return o.Queue + ".dead" }

func NewConsumer(conn *amqp.Connection, mailer Mailer, opts ConsumerOptions, logger *slog.Logger) (*Consumer, error) {
	opts.defaults()
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel failed: %w", err)
	}
	if err := declareTopology(ch, opts); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Qos(opts.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos failed: %w", err)
	}
	return &Consumer{mailer: mailer, opts: opts, logger: logger, ch: ch, pub: ch}, nil
}

func declareTopology(ch *amqp.Channel, opts ConsumerOptions) error {
	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange failed: %w", err)
	}
	if err := ch.ExchangeDeclare(opts.deadLetterExchange(), "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx failed: %w", err)
	}
	if _, err := ch.QueueDeclare(opts.deadLetterQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq failed: %w", err)
	}
	if err := ch.QueueBind(opts.deadLetterQueue(), "#", opts.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind dlq failed: %w", err)
	}

	args := amqp.Table{"x-dead-letter-exchange": opts.deadLetterExchange()}
	q, err := ch.QueueDeclare(opts.Queue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, opts.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue key=%s failed: %w", key, err)
		}
	}
	return nil
}

func (c *Consumer) Close() error {
	if c.ch == nil {
		return nil
	}
	return c.ch.Close()
}

// Run consumes until ctx ends or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.opts.Queue, "venuebook-notifier", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}
	c.logger.Info("notification worker started", "queue", c.opts.Queue, "max_attempts", c.opts.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func attemptsSoFar(headers amqp.Table) int {
	switch v := headers[AttemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var n models.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.logger.Error("undecodable notification, dead-lettering", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.opts.SendTimeout)
	err := Deliver(sendCtx, c.mailer, &n)
	cancel()
	if err == nil {
		c.logger.Info("notification sent", "kind", n.Kind, "to", n.To, "message_id", d.MessageId)
		_ = d.Ack(false)
		return
	}

	if IsPermanent(err) {
		c.logger.Error("notification cannot be delivered, dead-lettering", "kind", n.Kind, "error", err)
		_ = d.Nack(false, false)
		return
	}

	attempt := attemptsSoFar(d.Headers) + 1
	if attempt >= c.opts.MaxAttempts {
		c.logger.Error("notification failed too many times, dead-lettering",
			"kind", n.Kind,
			"to", n.To,
			"attempts", attempt,
			"error", err,
		)
		_ = d.Nack(false, false)
		return
	}

	c.logger.Warn("notification failed, scheduling retry", "kind", n.Kind, "attempt", attempt, "error", err)
	select {
	case <-time.After(c.opts.RetryDelay):
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[AttemptHeader] = int32(attempt)
	pubErr := c.pub.PublishWithContext(ctx, c.opts.Exchange, d.RoutingKey, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Headers:      headers,
		Body:         d.Body,
	})
	if pubErr != nil {
		c.logger.Error("failed to republish notification, requeueing", "error", pubErr)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
