// Package domain holds the step-up state machine: the facts gathered after a password
// sign-in, the pure evaluation that turns them into the next state, and the challenge DTO.
package domain

// State is where a sign-in stands.
type State string

const (
	StateUnauthenticated           State = "unauthenticated"
	StateFirstFactorOK             State = "first_factor_ok"
	StateAwaitingEmailVerification State = "awaiting_email_verification"
	StateAwaitingFactor            State = "awaiting_factor"
	StateAwaitingSecurityQuestion  State = "awaiting_security_question"
	StateAuthorized                State = "authorized"
)

// Client routes each state maps to.
const (
	RouteLogin                  = "/login"
	RouteVerifyEmail            = "/verify-email"
	RouteVerifyTOTP             = "/login/verify-mfa"
	RouteVerifyPhone            = "/login/verify-phone"
	RouteVerifySecurityQuestion = "/login/verify-security-question"
	RouteDashboard              = "/dashboard"
)

// FactorKind mirrors the enrolled factor types.
type FactorKind string

const (
	FactorTOTP  FactorKind = "totp"
	FactorPhone FactorKind = "phone"
)

// FactorHint describes an enrolled factor to the step-up page without exposing secrets.
type FactorHint struct {
	FactorID    string     `json:"factor_id"`
	Kind        FactorKind `json:"kind"`
	DisplayName string     `json:"display_name"`
	MaskedPhone string     `json:"masked_phone,omitempty"`
}

// Facts are everything Evaluate needs to know about a sign-in.
type Facts struct {
	EmailVerified       bool
	FactorEnrolled      bool
	FactorSatisfied     bool
	SecurityQuestionSet bool
	DeviceVerified      bool
	QuestionAnswered    bool
}

type Decision struct {
	State State
	Route string
	Hints []FactorHint
}

// Terminal reports whether the sign-in may be issued a session.
func (d Decision) Terminal() bool {
	return d.State == StateAuthorized
}

// Evaluate applies the step-up ordering: second factor, then email verification, then
// the security question on unverified devices.
func Evaluate(f Facts, hints []FactorHint) Decision {
	switch {
	case f.FactorEnrolled && !f.FactorSatisfied:
		return Decision{State: StateAwaitingFactor, Route: factorRoute(hints), Hints: hints}
	case !f.EmailVerified:
		return Decision{State: StateAwaitingEmailVerification, Route: RouteVerifyEmail}
	case f.SecurityQuestionSet && !f.DeviceVerified && !f.QuestionAnswered:
		return Decision{State: StateAwaitingSecurityQuestion, Route: RouteVerifySecurityQuestion}
	default:
		return Decision{State: StateAuthorized, Route: RouteDashboard}
	}
}

func factorRoute(hints []FactorHint) string {
	if len(hints) > 0 && hints[0].Kind == FactorPhone {
		return RouteVerifyPhone
	}
	return RouteVerifyTOTP
}

// RouteFor returns the route of a non-factor state. Factor routes depend on the hints.
func RouteFor(s State) string {
	switch s {
	case StateAwaitingEmailVerification:
		return RouteVerifyEmail
	case StateAwaitingSecurityQuestion:
		return RouteVerifySecurityQuestion
	case StateAuthorized:
		return RouteDashboard
	default:
		return RouteLogin
	}
}
