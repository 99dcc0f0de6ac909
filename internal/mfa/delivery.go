package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memodams/backend/internal/devotp"
	"memodams/backend/internal/mfa/sms"
)

// DefaultCodeTTL bounds how long an SMS code stays valid.
const DefaultCodeTTL = 5 * time.Minute

// ErrSMSUnavailable is returned when no SMS provider is configured and dev mode is off.
var ErrSMSUnavailable = errors.New("sms delivery is not configured")

// CodeSender generates phone codes and delivers them by SMS, or into the dev OTP store
// when DevMode is on. Only the hash of a code leaves Send.
type CodeSender struct {
	SMS     sms.Sender
	Dev     devotp.Store
	DevMode bool
	TTL     time.Duration
	now     func() time.Time
}

// NewCodeSender returns a CodeSender. smsSender may be nil when devMode is on.
func NewCodeSender(smsSender sms.Sender, dev devotp.Store, devMode bool, ttl time.Duration) *CodeSender {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeSender{SMS: smsSender, Dev: dev, DevMode: devMode, TTL: ttl, now: time.Now}
}

// Send delivers a fresh code to phone. deliveryID keys the dev store entry.
func (s *CodeSender) Send(ctx context.Context, deliveryID, phone string) (codeHash string, expiresAt time.Time, err error) {
	code, err := GenerateOTP()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	expiresAt = s.now().UTC().Add(s.TTL)
	switch {
	case s.DevMode && s.Dev != nil:
		s.Dev.Put(ctx, deliveryID, code, expiresAt)
	case s.SMS != nil:
		if err := s.SMS.SendOTP(ctx, phone, code); err != nil {
			return "", time.Time{}, fmt.Errorf("send otp: %w", err)
		}
	default:
		return "", time.Time{}, ErrSMSUnavailable
	}
	return HashOTP(code), expiresAt, nil
}

// Forget drops a dev-mode code once it has been used.
func (s *CodeSender) Forget(ctx context.Context, deliveryID string) {
	if s.Dev != nil {
		s.Dev.Delete(ctx, deliveryID)
	}
}
