package notify

import (
	"fmt"
	"html"
	"time"

	"promptmarket/internal/models"
)

const productName = "Prompt Market"

func approvalRequest(rec models.PendingRegistration, approveURL, rejectURL string) (subject, text, body string) {
	subject = fmt.Sprintf("[%s] New registration awaiting approval: %s", productName, rec.Username)
	expires := "in 7 days"
	if rec.TokenExpiresAt != nil {
		expires = rec.TokenExpiresAt.UTC().Format(time.RFC1123)
	}
	text = fmt.Sprintf(`A new account is waiting for review.

Username: %s
Email:    %s
Received: %s

Approve: %s
Reject:  %s

These links expire %s.
`, rec.Username, rec.Email, rec.CreatedAt.UTC().Format(time.RFC1123), approveURL, rejectURL, expires)
	body = fmt.Sprintf(`<p>A new account is waiting for review.</p>
<ul><li>Username: %s</li><li>Email: %s</li></ul>
<p><a href="%s">Approve</a> | <a href="%s">Reject</a></p>
<p>These links expire %s.</p>`,
		html.EscapeString(rec.Username), html.EscapeString(rec.Email),
		html.EscapeString(approveURL), html.EscapeString(rejectURL), html.EscapeString(expires))
	return subject, text, body
}

func verification(username, verifyURL string) (subject, text, body string) {
	subject = fmt.Sprintf("[%s] Confirm your email address", productName)
	text = fmt.Sprintf("Hi %s,\n\nYour account is ready. Confirm your email address within 24 hours:\n%s\n", username, verifyURL)
	body = fmt.Sprintf(`<p>Hi %s,</p><p>Your account is ready. <a href="%s">Confirm your email address</a> within 24 hours.</p>`,
		html.EscapeString(username), html.EscapeString(verifyURL))
	return subject, text, body
}

func rejection(username string) (subject, text, body string) {
	subject = fmt.Sprintf("[%s] Your registration was not approved", productName)
	text = fmt.Sprintf("Hi %s,\n\nA moderator reviewed your registration and did not approve it. You are welcome to register again.\n", username)
	body = fmt.Sprintf(`<p>Hi %s,</p><p>A moderator reviewed your registration and did not approve it. You are welcome to register again.</p>`,
		html.EscapeString(username))
	return subject, text, body
}

func welcome(username string) (subject, text, body string) {
	subject = fmt.Sprintf("Welcome to %s", productName)
	text = fmt.Sprintf("Hi %s,\n\nYour email is confirmed. Happy prompting!\n", username)
	body = fmt.Sprintf(`<p>Hi %s,</p><p>Your email is confirmed. Happy prompting!</p>`, html.EscapeString(username))
	return subject, text, body
}

func passwordReset(username, resetURL string) (subject, text, body string) {
	subject = fmt.Sprintf("[%s] Password reset", productName)
	text = fmt.Sprintf("Hi %s,\n\nUse this link within one hour to choose a new password:\n%s\n\nIgnore this email if you did not ask for a reset.\n", username, resetURL)
	body = fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s">Choose a new password</a> within one hour.</p><p>Ignore this email if you did not ask for a reset.</p>`,
		html.EscapeString(username), html.EscapeString(resetURL))
	return subject, text, body
}
