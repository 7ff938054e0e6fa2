// Package email holds helpers shared by the email senders.
package email

import (
	"fmt"
	"net/url"
	"strings"
)

// MagicLinkURL builds the sign-in link the frontend exchanges for a session.
func MagicLinkURL(frontendURL, toEmail, code string) string {
	q := url.Values{}
	q.Set("email", toEmail)
	q.Set("code", code)
	return fmt.Sprintf("%s/auth/callback?%s", strings.TrimRight(frontendURL, "/"), q.Encode())
}
