package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	accountdomain "memodams/backend/internal/account/domain"
	"memodams/backend/internal/admin/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/platform/rbac"
	"memodams/backend/internal/server/middleware"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler serves the admin surface.
type Handler struct {
	gate   *service.Gate
	admins rbac.Admins
	log    logging.Logger
}

func NewHandler(gate *service.Gate, admins rbac.Admins, log logging.Logger) *Handler {
	return &Handler{gate: gate, admins: admins, log: log}
}

// Register mounts the admin routes on r. The grant route authorizes the raw bearer itself;
// the read routes sit behind RequireAdmin.
func (h *Handler) Register(r fiber.Router) {
	guard := []fiber.Handler{middleware.RequireSession(), middleware.RequireAdmin(h.admins)}
	r.Post("/admin/grants", h.Grant)
	r.Get("/admin/users", append(guard, h.Users)...)
	r.Get("/admin/stats", append(guard, h.Stats)...)
}

type grantRequest struct {
	AccountID string `json:"account_id"`
}

func (h *Handler) Grant(c *fiber.Ctx) error {
	var req grantRequest
	if err := c.BodyParser(&req); err != nil || req.AccountID == "" {
		return middleware.WriteError(c, fiber.StatusBadRequest, "account_id is required", "account_id", "")
	}
	ctx := c.UserContext()
	token := middleware.ExtractBearer(c.Get(fiber.HeaderAuthorization))
	grant, err := h.gate.GrantAdmin(ctx, token, req.AccountID)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrPermissionDenied):
		return middleware.WriteError(c, fiber.StatusForbidden, "permission denied", "", "")
	case errors.Is(err, service.ErrAccountNotFound):
		return middleware.WriteError(c, fiber.StatusNotFound, "account not found", "account_id", "")
	default:
		h.log.Error(ctx, "admin: grant failed", "target_id", req.AccountID, "error", err)
		return middleware.Internal(c)
	}
	return c.JSON(fiber.Map{
		"target_id":    grant.TargetID,
		"granted_by":   grant.GrantedBy,
		"effective_on": grant.EffectiveOn,
		"granted_at":   grant.GrantedAt,
	})
}

type accountResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	Admin         bool      `json:"admin"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAccountResponse(a *accountdomain.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		EmailVerified: a.EmailVerified,
		Admin:         a.Admin,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
	}
}

func (h *Handler) Users(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	ctx := c.UserContext()
	list, err := h.gate.ListAccounts(ctx, limit, offset)
	if err != nil {
		h.log.Error(ctx, "admin: list accounts failed", "error", err)
		return middleware.Internal(c)
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	return c.JSON(fiber.Map{"users": out, "limit": limit, "offset": offset})
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	counts, err := h.gate.Stats(ctx)
	if err != nil {
		h.log.Error(ctx, "admin: stats failed", "error", err)
		return middleware.Internal(c)
	}
	return c.JSON(fiber.Map{
		"total_users":    counts.Total,
		"verified_users": counts.EmailVerified,
		"admin_users":    counts.Admins,
	})
}
