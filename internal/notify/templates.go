package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/joshua-takyi/venuebook/internal/models"
)

var funcs = template.FuncMap{
	"date":  func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 3:04 PM MST") },
	"price": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}

type emailTemplate struct {
	subject string
	text    *template.Template
	html    *htmltemplate.Template
}

var templates = map[models.NotificationKind]emailTemplate{
	models.NotifyBookingConfirmed: {
		subject: "Your booking at {{.Booking.VenueName}} is confirmed",
		text: template.Must(template.New("booking.txt").Funcs(funcs).Parse(`Hi {{.Name}},

Your booking is confirmed.

Venue:     {{.Booking.VenueName}}
From:      {{date .Booking.StartDate}}
To:        {{date .Booking.EndDate}}
Guests:    {{.Booking.Guests}}
Total:     {{price .Booking.TotalPrice}}
Reference: {{.Booking.PaymentReference}}
`)),
		html: htmltemplate.Must(htmltemplate.New("booking.html").Funcs(htmltemplate.FuncMap(funcs)).Parse(
			`<p>Hi {{.Name}},</p><p>Your booking is confirmed.</p><table>` +
				`<tr><td>Venue</td><td>{{.Booking.VenueName}}</td></tr>` +
				`<tr><td>From</td><td>{{date .Booking.StartDate}}</td></tr>` +
				`<tr><td>To</td><td>{{date .Booking.EndDate}}</td></tr>` +
				`<tr><td>Guests</td><td>{{.Booking.Guests}}</td></tr>` +
				`<tr><td>Total</td><td>{{price .Booking.TotalPrice}}</td></tr>` +
				`<tr><td>Reference</td><td>{{.Booking.PaymentReference}}</td></tr></table>`)),
	},
	models.NotifyUserRegistered: {
		subject: "Welcome to Venue Booking",
		text: template.Must(template.New("welcome.txt").Parse(`Hi {{.Name}},

Thanks for signing up. Please confirm your email address to start booking venues.
`)),
		html: htmltemplate.Must(htmltemplate.New("welcome.html").Parse(
			`<p>Hi {{.Name}},</p><p>Thanks for signing up. Please confirm your email address to start booking venues.</p>`)),
	},
	models.NotifyVenueCreated: {
		subject: "Venue created: {{.Venue.Name}}",
		text: template.Must(template.New("venue.txt").Parse(`A new venue was created.

Name:     {{.Venue.Name}}
Address:  {{.Venue.Address}}
Capacity: {{.Venue.Capacity}}
Phone:    {{if .Venue.Phone}}{{.Venue.Phone}}{{else}}N/A{{end}}
{{- if .Venue.EventDate}}
Event:    {{.Venue.EventDate}}{{end}}
`)),
		html: htmltemplate.Must(htmltemplate.New("venue.html").Parse(
			`<p>A new venue was created.</p><ul>` +
				`<li>Name: {{.Venue.Name}}</li>` +
				`<li>Address: {{.Venue.Address}}</li>` +
				`<li>Capacity: {{.Venue.Capacity}}</li>` +
				`<li>Phone: {{if .Venue.Phone}}{{.Venue.Phone}}{{else}}N/A{{end}}</li>` +
				`{{if .Venue.EventDate}}<li>Event: {{.Venue.EventDate}}</li>{{end}}</ul>` +
				`{{if .Venue.ImageURL}}<img src="{{.Venue.ImageURL}}" width="300">{{end}}`)),
	},
}

var errUnrenderable = errors.New("notification cannot be rendered")

// Render turns a notification into an email. Malformed notifications return an error
// wrapping errUnrenderable so workers can drop them instead of retrying.
func Render(n *models.Notification) (*Email, error) {
	if n == nil || strings.TrimSpace(n.To) == "" {
		return nil, fmt.Errorf("%w: missing recipient", errUnrenderable)
	}
	tmpl, ok := templates[n.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", errUnrenderable, n.Kind)
	}
	switch {
	case n.Kind == models.NotifyBookingConfirmed && n.Booking == nil:
		return nil, fmt.Errorf("%w: booking details missing", errUnrenderable)
	case n.Kind == models.NotifyVenueCreated && n.Venue == nil:
		return nil, fmt.Errorf("%w: venue details missing", errUnrenderable)
	}

	data := *n
	if data.Name == "" {
		data.Name = "there"
	}

	subject, err := template.New("subject").Parse(tmpl.subject)
	if err != nil {
		return nil, err
	}
	var subj, text, html bytes.Buffer
	if err := subject.Execute(&subj, data); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnrenderable, err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnrenderable, err)
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnrenderable, err)
	}

	return &Email{
		To:      n.To,
		Subject: subj.String(),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// Deliver renders n and sends it.
func Deliver(ctx context.Context, mailer Mailer, n *models.Notification) error {
	email, err := Render(n)
	if err != nil {
		return err
	}
	return mailer.Send(ctx, email)
}

// IsPermanent reports whether retrying err can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, errUnrenderable)
}
