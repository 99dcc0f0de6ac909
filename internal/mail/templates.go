package mail

import (
	"net/url"
	"strings"
)

// Links builds the web-app URLs embedded in account emails.
type Links struct {
	BaseURL string
}

func (l Links) build(path, token string) string {
	return strings.TrimRight(l.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// VerificationEmail is sent after sign-up and on "resend" from the verify-email page.
func (l Links) VerificationEmail(to, name, token string) Message {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	return Message{
		To:      to,
		Subject: "Verify your MemoDams email",
		Body: greeting + ",\n\nConfirm your email address to finish setting up your account:\n\n" +
			l.build("/verify-email", token) + "\n\nIf you did not sign up, ignore this message.",
	}
}

// PasswordResetEmail carries a single-use reset link.
func (l Links) PasswordResetEmail(to, token string) Message {
	return Message{
		To:      to,
		Subject: "Reset your MemoDams password",
		Body: "Someone asked to reset the password for this account.\n\n" +
			l.build("/reset-password", token) + "\n\nIf this was not you, you can ignore this email.",
	}
}
