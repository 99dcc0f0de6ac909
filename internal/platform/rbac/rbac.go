// Package rbac decides who may perform administrative actions.
package rbac

import (
	"errors"
	"strings"

	"memodams/backend/internal/security"
)

// ErrPermissionDenied is returned when the caller lacks the admin role.
var ErrPermissionDenied = errors.New("permission denied")

// Admins recognizes administrators: any token with the admin claim, plus the bootstrap
// address that provisions the first admin.
type Admins struct {
	bootstrapEmail string
}

// NewAdmins returns the admin predicate. An empty bootstrapEmail disables the bootstrap path.
func NewAdmins(bootstrapEmail string) Admins {
	return Admins{bootstrapEmail: strings.ToLower(strings.TrimSpace(bootstrapEmail))}
}

// IsBootstrap reports whether email is the configured bootstrap address.
func (a Admins) IsBootstrap(email string) bool {
	return a.bootstrapEmail != "" && strings.ToLower(strings.TrimSpace(email)) == a.bootstrapEmail
}

// Authorize returns ErrPermissionDenied unless claims belong to an admin. The bootstrap
// address must also be verified.
func (a Admins) Authorize(claims *security.Claims) error {
	if claims == nil {
		return ErrPermissionDenied
	}
	if claims.Admin {
		return nil
	}
	if claims.EmailVerified && a.IsBootstrap(claims.Email) {
		return nil
	}
	return ErrPermissionDenied
}
