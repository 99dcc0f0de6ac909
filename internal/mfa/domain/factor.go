package domain

import "time"

// Kind is the type of second factor.
type Kind string

const (
	KindTOTP  Kind = "totp"
	KindPhone Kind = "phone"
)

// Factor is an enrolled (or pending) second factor. A factor is pending until ConfirmedAt
// is set; at most one confirmed factor exists per account.
type Factor struct {
	ID          string
	AccountID   string
	Kind        Kind
	DisplayName string
	// Secret is the base32 TOTP secret (totp factors only).
	Secret string
	// Phone is the E.164 number without "+" (phone factors only).
	Phone string
	// PendingCodeHash is the SHA-256 of the enrollment OTP sent to Phone.
	PendingCodeHash    string
	PendingCodeExpires *time.Time
	ConfirmedAt        *time.Time
	CreatedAt          time.Time
}

// Confirmed reports whether enrollment finished.
func (f *Factor) Confirmed() bool {
	return f != nil && f.ConfirmedAt != nil
}

// MaskedPhone shows only the last four digits, e.g. "•••• 4321".
func (f *Factor) MaskedPhone() string {
	if f == nil || f.Phone == "" {
		return ""
	}
	p := f.Phone
	if len(p) <= 4 {
		return "•••• " + p
	}
	return "•••• " + p[len(p)-4:]
}
