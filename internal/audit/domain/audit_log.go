package domain

import "time"

// AuditLog is one security-relevant event. AccountID is empty for anonymous actors.
type AuditLog struct {
	ID        string
	AccountID string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions recorded by the auth flows.
const (
	ActionSignUp           = "sign_up"
	ActionLoginSuccess     = "login_success"
	ActionLoginFailure     = "login_failure"
	ActionStepUpPassed     = "step_up_passed"
	ActionStepUpFailed     = "step_up_failed"
	ActionStepUpLocked     = "step_up_locked"
	ActionStepUpAborted    = "step_up_aborted"
	ActionEmailVerified    = "email_verified"
	ActionPasswordChanged  = "password_changed"
	ActionPasswordReset    = "password_reset"
	ActionAdminGranted     = "admin_granted"
	ActionAdminDenied      = "admin_denied"
	ActionDeviceVerified   = "device_verified"
	ActionDeviceRevoked    = "device_revoked"
	ActionFactorEnrolled   = "factor_enrolled"
	ActionFactorUnenrolled = "factor_unenrolled"
	ActionSessionRevoked   = "session_revoked"
	ActionLogout           = "logout"
)
