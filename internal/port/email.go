package port

import "context"

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	SendMagicLink(ctx context.Context, toEmail, toName, code string) error
}
