package ses

import (
	"context"
	"fmt"
	"html"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"dealdossier/internal/email"
	"dealdossier/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	frontendURL string
	expiry      time.Duration
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName, frontendURL string, linkExpiry time.Duration) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		frontendURL: frontendURL,
		expiry:      linkExpiry,
	}, nil
}

func (s *sesSender) SendMagicLink(ctx context.Context, toEmail, toName, code string) error {
	link := email.MagicLinkURL(s.frontendURL, toEmail, code)

	subject := "Your Deal Dossier sign-in link"
	htmlBody := buildMagicLinkHTML(toName, link, code, s.expiry)
	textBody := fmt.Sprintf("Hi %s,\n\nSign in to Deal Dossier by visiting:\n%s\n\nOr enter this code: %s\n\nThis link expires in %s.\n",
		toName, link, code, humanDuration(s.expiry))

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d hour(s)", int(d/time.Hour))
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

func buildMagicLinkHTML(name, link, code string, expiry time.Duration) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Sign in to Deal Dossier</h2>
  <p>Hi %s,</p>
  <p>Click the button below to sign in:</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Sign In</a>
  </p>
  <p>Or enter this code: <strong>%s</strong></p>
  <p style="color: #999; font-size: 12px;">This link expires in %s. If you didn't request it, you can ignore this email.</p>
</body>
</html>`, html.EscapeString(name), html.EscapeString(link), html.EscapeString(code), humanDuration(expiry))
}
