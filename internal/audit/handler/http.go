package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	auditrepo "memodams/backend/internal/audit/repository"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/platform/rbac"
	"memodams/backend/internal/server/middleware"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// Handler lets admins read the audit trail.
type Handler struct {
	repo   auditrepo.Repository
	admins rbac.Admins
	log    logging.Logger
}

func NewHandler(repo auditrepo.Repository, admins rbac.Admins, log logging.Logger) *Handler {
	return &Handler{repo: repo, admins: admins, log: log}
}

func (h *Handler) Register(r fiber.Router) {
	r.Get("/admin/audit", middleware.RequireSession(), middleware.RequireAdmin(h.admins), h.List)
}

type entryResponse struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// List serves GET /v1/admin/audit?account_id=&action=&limit=&offset=, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	ctx := c.UserContext()
	entries, err := h.repo.List(ctx, auditrepo.ListFilter{
		AccountID: c.Query("account_id"),
		Action:    c.Query("action"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.log.Error(ctx, "audit: list failed", "error", err)
		return middleware.Internal(c)
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:        e.ID,
			AccountID: e.AccountID,
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"entries": out})
}
