package domain

import "time"

// Profile is the per-account document. SecurityAnswerHash never leaves the service.
type Profile struct {
	AccountID          string
	Bio                string
	AvatarURL          string
	Birthday           *time.Time
	SecurityQuestion   string
	SecurityAnswerHash string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasSecurityQuestion reports whether a security question gates new devices.
func (p *Profile) HasSecurityQuestion() bool {
	return p != nil && p.SecurityQuestion != "" && p.SecurityAnswerHash != ""
}

// Patch is a merge-write: nil fields are left untouched.
type Patch struct {
	Bio                *string
	AvatarURL          *string
	Birthday           *time.Time
	SecurityQuestion   *string
	SecurityAnswerHash *string
}
