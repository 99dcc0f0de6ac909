package domain

import "time"

// Lockout counts wrong codes and answers for an account across all of its challenges.
// A new challenge does not reset it.
type Lockout struct {
	AccountID   string
	Failures    int
	WindowStart time.Time
	LockedUntil *time.Time
	UpdatedAt   time.Time
}

// Locked reports whether step-up is refused for the account at now. Nil is unlocked.
func (l *Lockout) Locked(now time.Time) bool {
	return l != nil && l.LockedUntil != nil && now.Before(*l.LockedUntil)
}
