package email

import (
	"context"
	"fmt"
	"strings"
)

// EmailSender provides a testable abstraction over SES delivery.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
	SendFrom(ctx context.Context, recipient, subject, body, sender string) error
}

// SendMessage delivers msg to recipient, skipping blank recipients.
func SendMessage(ctx context.Context, sender EmailSender, recipient string, msg Message) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil
	}
	if sender == nil {
		return fmt.Errorf("email sender is not configured")
	}
	if msg.Subject == "" || msg.Body == "" {
		return fmt.Errorf("email message is empty")
	}
	return sender.Send(ctx, recipient, msg.Subject, msg.Body)
}
