package security

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords and security answers using bcrypt.
// Callers must not log or persist the plaintext.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost clamped to 4–31.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	cost = min(max(cost, bcrypt.MinCost), bcrypt.MaxCost)
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of secret suitable for storage.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil when secret matches hash, bcrypt.ErrMismatchedHashAndPassword otherwise.
func (h *Hasher) Compare(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}

// NormalizeAnswer trims surrounding whitespace and lower-cases a security answer
// so "  Rex " and "rex" hash identically.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// HashAnswer normalizes then hashes a security answer.
func (h *Hasher) HashAnswer(answer string) (string, error) {
	return h.Hash([]byte(NormalizeAnswer(answer)))
}

// AnswerMatches reports whether answer, after normalization, matches the stored hash.
func (h *Hasher) AnswerMatches(hash, answer string) bool {
	if hash == "" {
		return false
	}
	return h.Compare(hash, []byte(NormalizeAnswer(answer))) == nil
}
