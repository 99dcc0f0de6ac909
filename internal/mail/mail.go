// Package mail delivers account emails (verification and password reset links).
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"memodams/backend/internal/logging"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message. Implementations must not log link tokens at info level.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail through an SMTP relay with PLAIN auth when credentials are set.
type SMTPSender struct {
	Addr     string
	Username string
	Password string
	From     string
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.Username != "" {
		host := s.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		s.From, msg.To, msg.Subject, msg.Body)
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("mail: send to smtp relay: %w", err)
	}
	return nil
}

// LogSender writes messages to the debug log instead of sending them. Used in development.
type LogSender struct {
	Log logging.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.Log.Debug(ctx, "mail not sent (no SMTP relay configured)", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// Outbox records messages in memory. Tests only.
type Outbox struct {
	mu   sync.Mutex
	Sent []Message
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Sent = append(o.Sent, msg)
	return nil
}

// Last returns the most recent message, or false if none was sent.
func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Sent) == 0 {
		return Message{}, false
	}
	return o.Sent[len(o.Sent)-1], true
}
