package repository

import (
	"context"

	"memodams/backend/internal/audit/domain"
)

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	AccountID string
	Action    string
	Limit     int
	Offset    int
}

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	List(ctx context.Context, f ListFilter) ([]*domain.AuditLog, error)
}
