package notify

import (
	"net/url"
	"strings"
)

// Links builds the absolute action URLs embedded in emails.
type Links struct {
	BaseURL string
}

func (l Links) Approve(token string) string {
	return l.build("/api/v1/registrations/approve", token)
}

func (l Links) Reject(token string) string {
	return l.build("/api/v1/registrations/reject", token)
}

func (l Links) Verify(token string) string {
	return l.build("/api/v1/verify-email", token)
}

// Reset points at the web client, which posts the token back to the API.
func (l Links) Reset(token string) string {
	return l.build("/reset-password", token)
}

func (l Links) build(path, token string) string {
	base := strings.TrimRight(l.BaseURL, "/")
	return base + path + "?" + url.Values{"token": {token}}.Encode()
}
