package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mailgun/mailgun-go/v4"
)

// Email is a rendered message ready for a Mailer.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

type MailgunMailer struct {
	mg   mailgun.Mailgun
	from string
}

// NewMailgunMailer builds a mailer for domain. apiBase is optional and selects e.g. the
// EU region or a test server.
func NewMailgunMailer(domain, apiKey, from, apiBase string) *MailgunMailer {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &MailgunMailer{mg: mg, from: from}
}

func (m *MailgunMailer) Send(ctx context.Context, email *Email) error {
	msg := m.mg.NewMessage(m.from, email.Subject, email.Text, email.To)
	if email.HTML != "" {
		msg.SetHtml(email.HTML)
	}
	if _, _, err := m.mg.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun send to %s: %w", email.To, err)
	}
	return nil
}

// LogMailer writes emails to the log. Used when no mail provider is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(ctx context.Context, email *Email) error {
	m.Logger.Info("email (not sent, no mail provider configured)",
		"to", email.To,
		"subject", email.Subject,
		"body", email.Text,
	)
	return nil
}

// NewMailer picks Mailgun when credentials are present and falls back to logging.
func NewMailer(domain, apiKey, from string, logger *slog.Logger) Mailer {
	if domain == "" || apiKey == "" {
		logger.Warn("Mailgun not configured, emails will only be logged")
		return &LogMailer{Logger: logger}
	}
	return NewMailgunMailer(domain, apiKey, from, "")
}
