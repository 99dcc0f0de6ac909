// Package audit records security events (sign-ins, step-up outcomes, admin grants) for later review.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"memodams/backend/internal/audit/domain"
	auditrepo "memodams/backend/internal/audit/repository"
	"memodams/backend/internal/logging"
)

// IPExtractor returns the client IP carried by the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are logged
// and never affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, accountID, action, resource, metadata string)
}

// Logger implements AuditLogger over the audit repository.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         logging.Logger
}

// NewLogger returns an AuditLogger that persists to repo. ipExtractor may be nil; the IP is then "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log logging.Logger) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

func (l *Logger) LogEvent(ctx context.Context, accountID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := ""
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	// Detached so a cancelled request still leaves its trail.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil && l.log != nil {
		l.log.Error(ctx, "audit: failed to log event", "action", action, "resource", resource, "error", err)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
