package noop

import (
	"context"

	"go.uber.org/zap"

	"dealdossier/internal/email"
	"dealdossier/internal/port"
)

type noopSender struct {
	frontendURL string
	logger      *zap.Logger
}

// NewNoopSender creates a no-op EmailSender that logs sign-in links instead of sending them.
func NewNoopSender(frontendURL string, logger *zap.Logger) port.EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &noopSender{frontendURL: frontendURL, logger: logger}
}

func (s *noopSender) SendMagicLink(_ context.Context, toEmail, toName, code string) error {
	s.logger.Info("noop email: magic link",
		zap.String("to", toEmail),
		zap.String("name", toName),
		zap.String("url", email.MagicLinkURL(s.frontendURL, toEmail, code)),
	)
	return nil
}
