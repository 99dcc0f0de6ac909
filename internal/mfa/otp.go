// Package mfa implements second factors: TOTP authenticator apps and SMS one-time codes.
package mfa

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"memodams/backend/internal/security"
)

const otpDigits = 6

// GenerateOTP returns a 6-digit numeric OTP string (e.g. "042917").
func GenerateOTP() (string, error) {
	s := make([]byte, otpDigits)
	for i := range s {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		s[i] = '0' + byte(n.Int64())
	}
	return string(s), nil
}

// HashOTP returns the hex SHA-256 of the OTP; only the hash is stored.
func HashOTP(code string) string {
	return security.Digest(code)
}

// OTPEqual compares the provided OTP's hash with the stored hash in constant time.
func OTPEqual(providedOTP, storedHash string) bool {
	if providedOTP == "" || storedHash == "" {
		return false
	}
	return security.DigestEqual(providedOTP, storedHash)
}

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// NewTOTPKey generates a fresh TOTP secret for an authenticator app.
func NewTOTPKey(issuer, accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
}

// ValidateTOTP checks code against secret at t, allowing one period of clock skew.
func ValidateTOTP(code, secret string, t time.Time) bool {
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, totpOpts)
	return err == nil && ok
}
