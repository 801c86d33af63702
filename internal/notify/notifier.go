// Package notify delivers scheduling events to affected staff and
// students. Events are drained from the transactional outbox, so a
// notification is never sent for a timetable that failed to persist.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Notifier is any transport that can deliver one scheduling event.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload json.RawMessage) error
}

// ConsoleNotifier logs events instead of delivering them. Default in
// development.
type ConsoleNotifier struct {
	logger *zap.Logger
}

func NewConsoleNotifier(logger *zap.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) Notify(_ context.Context, eventType string, payload json.RawMessage) error {
	n.logger.Info("scheduling event",
		zap.String("event_type", eventType),
		zap.ByteString("payload", payload),
	)
	return nil
}

// SendgridNotifier emails each event to a distribution address.
type SendgridNotifier struct {
	apiKey    string
	fromName  string
	fromEmail string
	toEmail   string
}

func NewSendgridNotifier(apiKey, fromName, fromEmail, toEmail string) *SendgridNotifier {
	return &SendgridNotifier{
		apiKey:    apiKey,
		fromName:  fromName,
		fromEmail: fromEmail,
		toEmail:   toEmail,
	}
}

func (n *SendgridNotifier) Notify(_ context.Context, eventType string, payload json.RawMessage) error {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", n.toEmail)
	subject := fmt.Sprintf("[Scheduling] %s", eventType)
	body := string(payload)

	message := mail.NewSingleEmail(from, subject, to, body, body)
	client := sendgrid.NewSendClient(n.apiKey)
	resp, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: unexpected status %d", resp.StatusCode)
	}
	return nil
}
