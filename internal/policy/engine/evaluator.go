// Package engine evaluates the Rego policy that may tighten step-up sign-in.
package engine

import (
	"context"
	"time"
)

// Input describes the account and device at sign-in time.
type Input struct {
	AccountID           string
	Admin               bool
	EmailVerified       bool
	FactorEnrolled      bool
	SecurityQuestionSet bool
	// DeviceKnown is true when the device holds a verification flag for the account, of any age.
	DeviceKnown bool
}

// Requirements are additions to the baseline step-up rules. The zero value adds nothing.
type Requirements struct {
	// RequireSecurityQuestion asks the question even on a verified device.
	RequireSecurityQuestion bool
	// MaxDeviceTrustAge, when positive, ignores device flags older than this.
	MaxDeviceTrustAge time.Duration
}

// Evaluator returns the policy requirements for a sign-in.
type Evaluator interface {
	EvaluateStepUp(ctx context.Context, in Input) (Requirements, error)
}

// Baseline is the Evaluator that never tightens anything.
type Baseline struct{}

func (Baseline) EvaluateStepUp(context.Context, Input) (Requirements, error) {
	return Requirements{}, nil
}
