package cli

import (
	"context"
	"errors"
	"os"

	accountrepo "memodams/backend/internal/account/repository"
	adminservice "memodams/backend/internal/admin/service"
	"memodams/backend/internal/audit"
	auditrepo "memodams/backend/internal/audit/repository"
	"memodams/backend/internal/config"
	"memodams/backend/internal/db"
	devicerepo "memodams/backend/internal/device/repository"
	deviceservice "memodams/backend/internal/device/service"
	identityrepo "memodams/backend/internal/identity/repository"
	identityservice "memodams/backend/internal/identity/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/mail"
	"memodams/backend/internal/platform/rbac"
	profilerepo "memodams/backend/internal/profile/repository"
	profileservice "memodams/backend/internal/profile/service"
	"memodams/backend/internal/security"
	sessionrepo "memodams/backend/internal/session/repository"
)

// Env is what the commands operate on.
type Env struct {
	Accounts accountrepo.Repository
	Auth     *identityservice.AuthService
	Gate     *adminservice.Gate
	Devices  *deviceservice.Store
	closer   func() error
}

// Close releases the database connection, if any.
func (e *Env) Close() error {
	if e == nil || e.closer == nil {
		return nil
	}
	return e.closer()
}

// Repos are the stores an Env is built over.
type Repos struct {
	Accounts   accountrepo.Repository
	Identities identityrepo.Repository
	Sessions   sessionrepo.Repository
	Profiles   profilerepo.Repository
	Devices    devicerepo.Repository
	Audit      auditrepo.Repository
}

// NewEnv wires the services over repos. Operator actions are audited without a client IP.
func NewEnv(repos Repos, tokens *security.TokenProvider, hasher *security.Hasher, cfg *config.Config, log logging.Logger) *Env {
	auditLogger := audit.NewLogger(repos.Audit, nil, log)
	profiles := profileservice.NewProfileService(repos.Profiles, hasher)
	auth := identityservice.NewAuthService(repos.Accounts, repos.Identities, repos.Sessions, profiles, hasher, tokens,
		&mail.LogSender{Log: log}, mail.Links{BaseURL: cfg.AppBaseURL}, auditLogger, cfg.RefreshTTL())
	return &Env{
		Accounts: repos.Accounts,
		Auth:     auth,
		Gate:     adminservice.NewGate(repos.Accounts, security.NewAccessVerifier(tokens, auth.SessionActive), rbac.NewAdmins(cfg.BootstrapAdminEmail), auditLogger, nil),
		Devices:  deviceservice.NewStore(repos.Devices, cfg.DeviceTrustTTL(), auditLogger, nil),
	}
}

// OpenFromConfig connects to the database named by DATABASE_URL.
func OpenFromConfig(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("memoctl: DATABASE_URL is required")
	}
	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	env := NewEnv(Repos{
		Accounts:   accountrepo.NewPostgresRepository(conn),
		Identities: identityrepo.NewPostgresRepository(conn),
		Sessions:   sessionrepo.NewPostgresRepository(conn),
		Profiles:   profilerepo.NewPostgresRepository(conn),
		Devices:    devicerepo.NewPostgresRepository(conn),
		Audit:      auditrepo.NewPostgresRepository(conn),
	}, tokens, security.NewHasher(cfg.BcryptCost), cfg, logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
	env.closer = conn.Close
	return env, nil
}
