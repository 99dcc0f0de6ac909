package main

import (
	"context"
	"database/sql"

	accountrepo "memodams/backend/internal/account/repository"
	auditrepo "memodams/backend/internal/audit/repository"
	"memodams/backend/internal/db"
	devicerepo "memodams/backend/internal/device/repository"
	identityrepo "memodams/backend/internal/identity/repository"
	"memodams/backend/internal/logging"
	mfarepo "memodams/backend/internal/mfa/repository"
	profilerepo "memodams/backend/internal/profile/repository"
	sessionrepo "memodams/backend/internal/session/repository"
	stepuprepo "memodams/backend/internal/stepup/repository"
)

// stores groups every repository the server uses. db is nil in memory mode.
type stores struct {
	db         *sql.DB
	accounts   accountrepo.Repository
	identities identityrepo.Repository
	sessions   sessionrepo.Repository
	profiles   profilerepo.Repository
	devices    devicerepo.Repository
	factors    mfarepo.Repository
	challenges stepuprepo.Repository
	lockouts   stepuprepo.Lockouts
	audit      auditrepo.Repository
}

// openStores connects to Postgres when dsn is set and falls back to in-process stores
// otherwise. Memory mode loses everything on restart and is meant for local development.
func openStores(ctx context.Context, dsn string, log logging.Logger) (*stores, error) {
	if dsn == "" {
		log.Warn(ctx, "DATABASE_URL not set; using in-memory stores")
		return &stores{
			accounts:   accountrepo.NewMemoryRepository(),
			identities: identityrepo.NewMemoryRepository(),
			sessions:   sessionrepo.NewMemoryRepository(),
			profiles:   profilerepo.NewMemoryRepository(),
			devices:    devicerepo.NewMemoryRepository(),
			factors:    mfarepo.NewMemoryRepository(),
			challenges: stepuprepo.NewMemoryRepository(),
			lockouts:   stepuprepo.NewMemoryLockouts(),
			audit:      auditrepo.NewMemoryRepository(),
		}, nil
	}
	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &stores{
		db:         conn,
		accounts:   accountrepo.NewPostgresRepository(conn),
		identities: identityrepo.NewPostgresRepository(conn),
		sessions:   sessionrepo.NewPostgresRepository(conn),
		profiles:   profilerepo.NewPostgresRepository(conn),
		devices:    devicerepo.NewPostgresRepository(conn),
		factors:    mfarepo.NewPostgresRepository(conn),
		challenges: stepuprepo.NewPostgresRepository(conn),
		lockouts:   stepuprepo.NewPostgresLockouts(conn),
		audit:      auditrepo.NewPostgresRepository(conn),
	}, nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
