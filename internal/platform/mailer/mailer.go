package mailer

import (
	"context"
	"fmt"

	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/platform/sendgrid"
)

// Mailer sends plain-text transactional mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// DeliveryError reports a message the provider did not accept.
type DeliveryError struct {
	To    string
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mail delivery to %s failed: %v", e.To, e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

type sendgridMailer struct {
	client sendgrid.Client
}

func NewSendGrid(client sendgrid.Client) Mailer {
	return &sendgridMailer{client: client}
}

func (m *sendgridMailer) Send(ctx context.Context, to, subject, body string) error {
	_, err := m.client.Send(ctx, sendgrid.Message{
		To:       []sendgrid.Address{{Email: to}},
		Subject:  subject,
		Text:     body,
		Category: "auth",
	})
	if err != nil {
		return &DeliveryError{To: to, Cause: err}
	}
	return nil
}

// logMailer writes messages to the log instead of sending them. Used when no
// provider is configured.
type logMailer struct {
	log *logger.Logger
}

func NewLog(log *logger.Logger) Mailer {
	return &logMailer{log: log.With("component", "LogMailer")}
}

func (m *logMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Info("mail (not sent; no provider configured)", "email", to, "subject", subject, "body", body)
	return nil
}

// New picks SendGrid when an API key is configured, else the log mailer.
func New(log *logger.Logger, cfg sendgrid.Config) (Mailer, error) {
	if cfg.APIKey == "" {
		return NewLog(log), nil
	}
	c, err := sendgrid.New(log, cfg)
	if err != nil {
		return nil, err
	}
	return NewSendGrid(c), nil
}
