package service

import (
	"context"
	"errors"
	"testing"
	"time"

	accountdomain "memodams/backend/internal/account/domain"
	accountrepo "memodams/backend/internal/account/repository"
	"memodams/backend/internal/audit"
	auditdomain "memodams/backend/internal/audit/domain"
	auditrepo "memodams/backend/internal/audit/repository"
	"memodams/backend/internal/platform/rbac"
	"memodams/backend/internal/security"
)

const bootstrapEmail = "root@memodams.app"

type gateEnv struct {
	gate     *Gate
	accounts *accountrepo.MemoryRepository
	audit    *auditrepo.MemoryRepository
	tokens   *security.TokenProvider
	revoked  map[string]bool
}

func newGateEnv(t *testing.T) *gateEnv {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	env := &gateEnv{accounts: accountrepo.NewMemoryRepository(), audit: auditrepo.NewMemoryRepository(), tokens: tokens, revoked: map[string]bool{}}
	sessions := func(_ context.Context, id string) (bool, error) { return !env.revoked[id], nil }
	env.gate = NewGate(env.accounts, security.NewAccessVerifier(tokens, sessions), rbac.NewAdmins(bootstrapEmail), audit.NewLogger(env.audit, nil, nil), nil)
	for _, a := range []struct{ id, email string }{{"root", bootstrapEmail}, {"u1", "u1@example.com"}, {"u2", "u2@example.com"}} {
		now := time.Now().UTC()
		if err := env.accounts.Create(context.Background(), &accountdomain.Account{
			ID: a.id, Email: a.email, EmailVerified: true, Status: accountdomain.AccountStatusActive, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return env
}

func (e *gateEnv) token(t *testing.T, sub security.Subject) string {
	t.Helper()
	tok, _, err := e.tokens.IssueAccess("sess", sub)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestGrantAdmin_Bootstrap(t *testing.T) {
	env := newGateEnv(t)
	ctx := context.Background()
	actor := env.token(t, security.Subject{AccountID: "root", Email: "ROOT@memodams.app", EmailVerified: true})

	grant, err := env.gate.GrantAdmin(ctx, actor, "u1")
	if err != nil {
		t.Fatalf("GrantAdmin: %v", err)
	}
	if grant.TargetID != "u1" || grant.GrantedBy != "root" || grant.EffectiveOn != EffectiveOnNextTokenRefresh {
		t.Errorf("grant = %+v", grant)
	}
	if a, _ := env.accounts.GetByID(ctx, "u1"); !a.Admin {
		t.Error("target should be admin")
	}
	if _, err := env.gate.GrantAdmin(ctx, actor, "u1"); err != nil {
		t.Errorf("granting twice should succeed: %v", err)
	}
}

func TestGrantAdmin_AdminClaim(t *testing.T) {
	env := newGateEnv(t)
	actor := env.token(t, security.Subject{AccountID: "u1", Email: "u1@example.com", EmailVerified: true, Admin: true})
	if _, err := env.gate.GrantAdmin(context.Background(), actor, "u2"); err != nil {
		t.Fatalf("GrantAdmin: %v", err)
	}
}

func TestGrantAdmin_Denied(t *testing.T) {
	env := newGateEnv(t)
	ctx := context.Background()
	actor := env.token(t, security.Subject{AccountID: "u1", Email: "u1@example.com", EmailVerified: true})

	for _, tok := range []string{actor, "not-a-token", ""} {
		if _, err := env.gate.GrantAdmin(ctx, tok, "u2"); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("GrantAdmin(%q) = %v, want ErrPermissionDenied", tok, err)
		}
	}
	if a, _ := env.accounts.GetByID(ctx, "u2"); a.Admin {
		t.Error("denied call must not touch the target")
	}
	// A stale token does not gain rights just because the account became admin later.
	if _, err := env.accounts.SetAdmin(ctx, "u1", true); err != nil {
		t.Fatal(err)
	}
	if _, err := env.gate.GrantAdmin(ctx, actor, "u2"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("old token = %v, want ErrPermissionDenied", err)
	}
	denied, _ := env.audit.List(ctx, auditrepo.ListFilter{Action: auditdomain.ActionAdminDenied})
	if len(denied) != 4 {
		t.Errorf("denials audited = %d, want 4", len(denied))
	}
}

func TestGrantAdmin_RevokedSession(t *testing.T) {
	env := newGateEnv(t)
	ctx := context.Background()
	actor := env.token(t, security.Subject{AccountID: "u1", Email: "u1@example.com", EmailVerified: true, Admin: true})
	env.revoked["sess"] = true

	if _, err := env.gate.GrantAdmin(ctx, actor, "u2"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("revoked session = %v, want ErrPermissionDenied", err)
	}
	if a, _ := env.accounts.GetByID(ctx, "u2"); a.Admin {
		t.Error("revoked admin token must not grant")
	}
}

func TestGrantAdmin_UnknownTarget(t *testing.T) {
	env := newGateEnv(t)
	actor := env.token(t, security.Subject{AccountID: "root", Email: bootstrapEmail, EmailVerified: true})
	if _, err := env.gate.GrantAdmin(context.Background(), actor, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestBootstrapAndStats(t *testing.T) {
	env := newGateEnv(t)
	ctx := context.Background()
	grant, err := env.gate.Bootstrap(ctx, bootstrapEmail)
	if err != nil || grant.GrantedBy != GrantedByBootstrap || grant.TargetID != "root" {
		t.Fatalf("Bootstrap = %+v, %v", grant, err)
	}
	if _, err := env.gate.Bootstrap(ctx, "nobody@example.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Bootstrap unknown = %v", err)
	}
	counts, err := env.gate.Stats(ctx)
	if err != nil || counts.Total != 3 || counts.Admins != 1 || counts.EmailVerified != 3 {
		t.Errorf("Stats = %+v, %v", counts, err)
	}
	late := time.Now().Add(time.Hour)
	if err := env.accounts.Create(ctx, &accountdomain.Account{
		ID: "late", Email: "late@example.com", Status: accountdomain.AccountStatusActive, CreatedAt: late, UpdatedAt: late,
	}); err != nil {
		t.Fatal(err)
	}
	list, err := env.gate.ListAccounts(ctx, 2, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListAccounts = %d, %v", len(list), err)
	}
	if list[0].ID != "late" || list[1].ID != "u2" {
		t.Errorf("ListAccounts order = %s, %s; want late, u2", list[0].ID, list[1].ID)
	}
}
