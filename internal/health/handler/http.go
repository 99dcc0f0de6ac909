package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/logging"
)

// Checker is the readiness check.
type Checker interface {
	Check(ctx context.Context) error
}

// HTTP serves liveness and readiness for load balancers.
type HTTP struct {
	checker Checker
	log     logging.Logger
}

func NewHTTP(checker Checker, log logging.Logger) *HTTP {
	return &HTTP{checker: checker, log: log}
}

func (h *HTTP) Register(r fiber.Router) {
	r.Get("/healthz", h.Live)
	r.Get("/readyz", h.Ready)
}

func (h *HTTP) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *HTTP) Ready(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := h.checker.Check(ctx); err != nil {
		h.log.Warn(ctx, "health: not ready", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
