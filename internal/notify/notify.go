// Package notify emails operators when the scraper delivers a lead the
// dashboard has not seen before.
package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/tbourn/leadops-backend/internal/config"
	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/observability"
	"github.com/tbourn/leadops-backend/internal/sysutil"
)

// sender delivers composed messages.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// newSender is swapped in tests.
var newSender = func(cfg config.MailConfig) sender {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
}

var leadTmpl = template.Must(template.New("lead").Parse(`<h2>New lead: {{.Title}}</h2>
<table>
{{- range .Rows}}
<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>
{{- end}}
</table>
`))

// Mailer sends lead notifications over SMTP. A zero Host disables it.
type Mailer struct {
	cfg config.MailConfig
}

// NewMailer returns a Mailer for cfg.
func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool { return m != nil && m.cfg.Host != "" }

// LeadCreated emails NotifyTo about l. It is a no-op when disabled. It
// returns ctx.Err() once ctx is done even if the SMTP exchange is still in
// flight. Failures are counted in lead_notifications_failed_total and
// returned.
func (m *Mailer) LeadCreated(ctx context.Context, l *domain.Lead) error {
	if !m.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.compose(l)
	if err != nil {
		observability.NotificationFailures.Inc()
		return err
	}
	if err := send(ctx, newSender(m.cfg), msg); err != nil {
		observability.NotificationFailures.Inc()
		return fmt.Errorf("send lead notification: %w", err)
	}
	return nil
}

// send returns when s finishes or ctx is done, whichever is first. gomail
// has no context support, so an abandoned send runs on until the SMTP
// server answers or its dial timeout fires.
func send(ctx context.Context, s sender, msg *gomail.Message) error {
	done := make(chan error, 1)
	go func() { done <- s.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type row struct{ Label, Value string }

func (m *Mailer) compose(l *domain.Lead) (*gomail.Message, error) {
	var rows []row
	add := func(label string, v *string) {
		if v != nil && *v != "" {
			rows = append(rows, row{label, *v})
		}
	}
	rows = append(rows, row{"Place ID", l.PlaceID})
	add("Contact", l.Name)
	add("Email", l.Email)
	add("Phone", l.Phone)
	add("Website", l.Website)
	add("Address", l.Address)
	add("Postal code", l.PostalCode)
	add("Business type", l.BusinessType)
	add("Rating", l.Rating)

	var body strings.Builder
	if err := leadTmpl.Execute(&body, struct {
		Title string
		Rows  []row
	}{l.Title, rows}); err != nil {
		return nil, fmt.Errorf("render lead notification: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", sysutil.FirstNonEmpty(m.cfg.From, m.cfg.User))
	msg.SetHeader("To", splitRecipients(m.cfg.NotifyTo)...)
	msg.SetHeader("Subject", "New lead: "+l.Title)
	msg.SetBody("text/html", body.String())
	return msg, nil
}

func splitRecipients(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
