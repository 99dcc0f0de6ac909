package domain

import "time"

// ChallengeVersion is bumped whenever the persisted challenge shape changes.
const ChallengeVersion = 1

// Stage is the pending step of a challenge.
type Stage string

const (
	StageFactor            Stage = "factor"
	StageEmailVerification Stage = "email_verification"
	StageSecurityQuestion  Stage = "security_question"
)

// StageOf maps a non-terminal state to its challenge stage.
func StageOf(s State) (Stage, bool) {
	switch s {
	case StateAwaitingFactor:
		return StageFactor, true
	case StateAwaitingEmailVerification:
		return StageEmailVerification, true
	case StateAwaitingSecurityQuestion:
		return StageSecurityQuestion, true
	}
	return "", false
}

// State maps the stage back to its state.
func (s Stage) State() State {
	switch s {
	case StageFactor:
		return StateAwaitingFactor
	case StageEmailVerification:
		return StateAwaitingEmailVerification
	case StageSecurityQuestion:
		return StateAwaitingSecurityQuestion
	}
	return StateUnauthenticated
}

// Challenge is the server-held step-up session. The browser only knows ID.
type Challenge struct {
	ID              string
	Version         int
	AccountID       string
	DeviceID        string
	Stage           Stage
	Hints           []FactorHint
	FactorSatisfied bool
	// CodeHash is the SHA-256 of the last SMS code sent for this challenge.
	CodeHash      string
	CodeExpiresAt *time.Time
	Attempts      int
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the challenge can no longer be resumed.
func (c *Challenge) Expired(now time.Time) bool {
	return c == nil || !now.Before(c.ExpiresAt)
}

// Route is where the browser should be while this challenge is pending.
func (c *Challenge) Route() string {
	if c.Stage == StageFactor {
		return factorRoute(c.Hints)
	}
	return RouteFor(c.Stage.State())
}

// PhoneHint returns the first phone hint, if any.
func (c *Challenge) PhoneHint() (FactorHint, bool) {
	for _, h := range c.Hints {
		if h.Kind == FactorPhone {
			return h, true
		}
	}
	return FactorHint{}, false
}
