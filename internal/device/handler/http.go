package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/device/domain"
	"memodams/backend/internal/device/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/server/middleware"
)

// Store is the subset of the device store the handler needs.
type Store interface {
	List(ctx context.Context, accountID string) ([]*domain.TrustedDevice, error)
	Revoke(ctx context.Context, accountID, deviceID string) error
}

// Handler serves the caller's own verified devices.
type Handler struct {
	store Store
	log   logging.Logger
}

func NewHandler(store Store, log logging.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Register mounts the device routes on r behind RequireSession.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/devices", middleware.RequireSession(), h.List)
	r.Delete("/devices/:id", middleware.RequireSession(), h.Revoke)
}

type deviceResponse struct {
	DeviceID     string     `json:"device_id"`
	Label        string     `json:"label,omitempty"`
	VerifiedAt   time.Time  `json:"verified_at"`
	TrustedUntil *time.Time `json:"trusted_until,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
	Current      bool       `json:"current"`
}

// List returns GET /v1/devices.
func (h *Handler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	list, err := h.store.List(ctx, accountID)
	if err != nil {
		h.log.Error(ctx, "device: list failed", "account_id", accountID, "error", err)
		return middleware.Internal(c)
	}
	current := middleware.DeviceID(ctx)
	out := make([]deviceResponse, 0, len(list))
	for _, d := range list {
		out = append(out, deviceResponse{
			DeviceID:     d.DeviceID,
			Label:        d.Label,
			VerifiedAt:   d.VerifiedAt,
			TrustedUntil: d.TrustedUntil,
			RevokedAt:    d.RevokedAt,
			LastSeenAt:   d.LastSeenAt,
			Current:      d.DeviceID == current,
		})
	}
	return c.JSON(fiber.Map{"devices": out})
}

// Revoke handles DELETE /v1/devices/:id.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	err := h.store.Revoke(ctx, accountID, c.Params("id"))
	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		return middleware.WriteError(c, fiber.StatusNotFound, "device not found", "", "")
	case err != nil:
		h.log.Error(ctx, "device: revoke failed", "account_id", accountID, "error", err)
		return middleware.Internal(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
