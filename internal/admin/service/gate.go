// Package service implements the admin authorization gate and the admin account views.
package service

import (
	"context"
	"errors"
	"time"

	accountdomain "memodams/backend/internal/account/domain"
	"memodams/backend/internal/audit"
	auditdomain "memodams/backend/internal/audit/domain"
	"memodams/backend/internal/platform/rbac"
	"memodams/backend/internal/security"
	"memodams/backend/internal/telemetry"
	telemetrydomain "memodams/backend/internal/telemetry/domain"
)

// EffectiveOnNextTokenRefresh tells callers the grant shows up only in the target's next token.
const EffectiveOnNextTokenRefresh = "next_token_refresh"

// GrantedByBootstrap marks grants made at provisioning time rather than by an actor.
const GrantedByBootstrap = "bootstrap"

var (
	ErrPermissionDenied = rbac.ErrPermissionDenied
	ErrAccountNotFound  = errors.New("account not found")
)

// AccountStore is the account persistence the gate needs.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	List(ctx context.Context, limit, offset int) ([]*accountdomain.Account, error)
	Count(ctx context.Context) (accountdomain.Counts, error)
	SetAdmin(ctx context.Context, id string, admin bool) (bool, error)
}

// AccessVerifier verifies the actor's bearer token and the session behind it.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*security.Claims, error)
}

// Grant records a successful admin grant.
type Grant struct {
	TargetID    string
	GrantedBy   string
	EffectiveOn string
	GrantedAt   time.Time
}

type Gate struct {
	accounts AccountStore
	tokens   AccessVerifier
	admins   rbac.Admins
	audit    audit.AuditLogger
	events   telemetry.Recorder
	now      func() time.Time
}

// NewGate returns a Gate. auditLogger and events may be nil.
func NewGate(accounts AccountStore, tokens AccessVerifier, admins rbac.Admins, auditLogger audit.AuditLogger, events telemetry.Recorder) *Gate {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if events == nil {
		events = telemetry.Nop{}
	}
	return &Gate{accounts: accounts, tokens: tokens, admins: admins, audit: auditLogger, events: events, now: time.Now}
}

// GrantAdmin makes targetID an admin when actorToken belongs to an admin or to the
// bootstrap address and its session is still active. Denied calls never read or write the target. Granting twice is a no-op.
func (g *Gate) GrantAdmin(ctx context.Context, actorToken, targetID string) (*Grant, error) {
	claims, err := g.tokens.VerifyAccess(ctx, actorToken)
	if security.IsRejected(err) {
		g.deny(ctx, "", targetID)
		return nil, ErrPermissionDenied
	}
	if err != nil {
		return nil, err
	}
	actorID := claims.AccountID()
	if err := g.admins.Authorize(claims); err != nil {
		g.deny(ctx, actorID, targetID)
		return nil, err
	}
	return g.grant(ctx, actorID, targetID)
}

// Bootstrap grants admin to the account registered under email. It is an operator action
// and skips the actor check.
func (g *Gate) Bootstrap(ctx context.Context, email string) (*Grant, error) {
	acct, err := g.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	return g.grant(ctx, GrantedByBootstrap, acct.ID)
}

func (g *Gate) grant(ctx context.Context, grantedBy, targetID string) (*Grant, error) {
	ok, err := g.accounts.SetAdmin(ctx, targetID, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	auditActor := grantedBy
	if grantedBy == GrantedByBootstrap {
		auditActor = ""
	}
	g.audit.LogEvent(ctx, auditActor, auditdomain.ActionAdminGranted, "account", "target="+targetID)
	ev := telemetrydomain.NewEvent(telemetrydomain.EventAdminGranted, "admin", map[string]string{"target_id": targetID, "granted_by": grantedBy})
	ev.AccountID = auditActor
	g.events.Record(ctx, ev)
	return &Grant{
		TargetID:    targetID,
		GrantedBy:   grantedBy,
		EffectiveOn: EffectiveOnNextTokenRefresh,
		GrantedAt:   g.now().UTC(),
	}, nil
}

func (g *Gate) deny(ctx context.Context, actorID, targetID string) {
	g.audit.LogEvent(ctx, actorID, auditdomain.ActionAdminDenied, "account", "target="+targetID)
	ev := telemetrydomain.NewEvent(telemetrydomain.EventAdminDenied, "admin", map[string]string{"target_id": targetID})
	ev.AccountID = actorID
	g.events.Record(ctx, ev)
}

// ListAccounts pages through every account, newest first.
func (g *Gate) ListAccounts(ctx context.Context, limit, offset int) ([]*accountdomain.Account, error) {
	return g.accounts.List(ctx, limit, offset)
}

// Stats returns account totals.
func (g *Gate) Stats(ctx context.Context) (accountdomain.Counts, error) {
	return g.accounts.Count(ctx)
}
