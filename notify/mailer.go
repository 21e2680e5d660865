// Package notify delivers committed payment transitions to people: receipts
// and statements by email, and a live feed for administrators over websocket.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is one outgoing email
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	PlainText string
	HTML      string
}

// Mailer sends email
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SendGrid sends through the SendGrid v3 API
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGrid returns a mailer sending as fromName <fromAddress>
func NewSendGrid(apiKey, fromAddress, fromName string) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

// Send delivers m and treats any non-2xx answer as a failure
func (s *SendGrid) Send(ctx context.Context, m Message) error {
	to := mail.NewEmail(m.ToName, m.ToAddress)
	msg := mail.NewSingleEmail(s.from, m.Subject, to, m.PlainText, m.HTML)

	response, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	zap.S().Debugw("email sent",
		"subject", m.Subject,
		"statusCode", response.StatusCode)
	return nil
}

// Nop logs instead of sending. It is used when no API key is configured.
type Nop struct{}

// Send logs the message
func (Nop) Send(_ context.Context, m Message) error {
	zap.S().Infow("email not sent, mailer disabled",
		"to", m.ToAddress,
		"subject", m.Subject)
	return nil
}
