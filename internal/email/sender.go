// Package email notifies tenant staff about conversations the pipeline
// escalated to a human. Delivery goes through the tenant's SMTP server.
package email

import (
	"context"
	"fmt"
	"html"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"replyforce_backend/platform/config"
)

// EscalationNotifier sends the "a customer needs a human" email.
type EscalationNotifier interface {
	SendEscalationEmail(ctx context.Context, toEmail string, data EscalationData) error
}

// EscalationData fills the escalation notification.
type EscalationData struct {
	Channel      string
	SenderName   string
	Reason       string
	Preview      string
	Conversation string
}

// SMTPSender delivers notifications via a direct SMTP connection.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	enabled   bool
}

// NewSMTPSender builds the sender from configuration. When email is disabled
// every send is a silent no-op.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		enabled:   cfg.GetEmailEnabled(),
	}
}

const subjectEscalationFmt = "Customer needs a human: %s conversation"

// SendEscalationEmail notifies the tenant that a conversation was handed off.
func (s *SMTPSender) SendEscalationEmail(ctx context.Context, toEmail string, data EscalationData) error {
	if !s.enabled || toEmail == "" {
		return nil
	}

	sender := data.SenderName
	if sender == "" {
		sender = "A customer"
	}

	content := fmt.Sprintf(`<html><body>
<h2>Conversation escalated to your team</h2>
<p><strong>%s</strong> on <strong>%s</strong> needs a human response.</p>
<p>Reason: %s</p>
<blockquote>%s</blockquote>
<p>Conversation: %s</p>
</body></html>`,
		html.EscapeString(sender),
		html.EscapeString(data.Channel),
		html.EscapeString(data.Reason),
		html.EscapeString(data.Preview),
		html.EscapeString(data.Conversation),
	)

	return s.send(ctx, toEmail, fmt.Sprintf(subjectEscalationFmt, data.Channel), content)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

var _ EscalationNotifier = (*SMTPSender)(nil)
