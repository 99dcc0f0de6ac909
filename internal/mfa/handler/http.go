package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/logging"
	"memodams/backend/internal/mfa"
	"memodams/backend/internal/mfa/domain"
	"memodams/backend/internal/mfa/service"
	"memodams/backend/internal/server/middleware"
)

// Handler serves second-factor enrollment for the signed-in account.
type Handler struct {
	factors *service.FactorService
	log     logging.Logger
}

func NewHandler(factors *service.FactorService, log logging.Logger) *Handler {
	return &Handler{factors: factors, log: log}
}

// Register mounts the factor routes on r. Unverified accounts get through the guard so the
// service can answer with the verify-email route.
func (h *Handler) Register(r fiber.Router) {
	auth := middleware.RequireAuth()
	r.Get("/factors", auth, h.List)
	r.Post("/factors/totp", auth, h.EnrollTOTP)
	r.Post("/factors/totp/confirm", auth, h.ConfirmTOTP)
	r.Post("/factors/phone", auth, h.EnrollPhone)
	r.Post("/factors/phone/confirm", auth, h.ConfirmPhone)
	r.Delete("/factors/:id", auth, h.Unenroll)
}

type factorResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	DisplayName string     `json:"display_name"`
	MaskedPhone string     `json:"masked_phone,omitempty"`
	Confirmed   bool       `json:"confirmed"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

func toResponse(f *domain.Factor) factorResponse {
	return factorResponse{
		ID:          f.ID,
		Kind:        string(f.Kind),
		DisplayName: f.DisplayName,
		MaskedPhone: f.MaskedPhone(),
		Confirmed:   f.Confirmed(),
		ConfirmedAt: f.ConfirmedAt,
	}
}

func (h *Handler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	list, err := h.factors.List(ctx, accountID)
	if err != nil {
		return h.fail(c, "list", err)
	}
	out := make([]factorResponse, 0, len(list))
	for _, f := range list {
		out = append(out, toResponse(f))
	}
	return c.JSON(fiber.Map{"factors": out})
}

func (h *Handler) EnrollTOTP(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	enr, err := h.factors.EnrollTOTP(ctx, accountID)
	if err != nil {
		return h.fail(c, "enroll totp", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"factor_id":   enr.FactorID,
		"secret":      enr.Secret,
		"otpauth_url": enr.URL,
	})
}

type codeRequest struct {
	EnrollmentID string `json:"enrollment_id"`
	Code         string `json:"code"`
}

func (h *Handler) ConfirmTOTP(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	if err := h.factors.ConfirmTOTP(ctx, accountID, req.Code); err != nil {
		return h.fail(c, "confirm totp", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) EnrollPhone(c *fiber.Ctx) error {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	id, err := h.factors.EnrollPhone(ctx, accountID, req.Phone)
	if err != nil {
		return h.fail(c, "enroll phone", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"enrollment_id": id})
}

func (h *Handler) ConfirmPhone(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	if req.EnrollmentID == "" {
		return middleware.WriteError(c, fiber.StatusBadRequest, "enrollment_id is required", "enrollment_id", "")
	}
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	if err := h.factors.ConfirmPhone(ctx, accountID, req.EnrollmentID, req.Code); err != nil {
		return h.fail(c, "confirm phone", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) Unenroll(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	if err := h.factors.Unenroll(ctx, accountID, c.Params("id")); err != nil {
		return h.fail(c, "unenroll", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// fail maps service errors to responses and logs the unexpected ones.
func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrEmailNotVerified):
		return middleware.WriteError(c, fiber.StatusForbidden, err.Error(), "", middleware.RouteVerifyEmail)
	case errors.Is(err, service.ErrFactorAlreadyEnrolled):
		return middleware.WriteError(c, fiber.StatusConflict, err.Error(), "", "")
	case errors.Is(err, service.ErrFactorNotFound):
		return middleware.WriteError(c, fiber.StatusNotFound, err.Error(), "", "")
	case errors.Is(err, service.ErrInvalidCode):
		return middleware.WriteError(c, fiber.StatusBadRequest, "Invalid verification code. Please try again.", "code", "")
	case errors.Is(err, service.ErrInvalidPhone):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "phone", "")
	case errors.Is(err, mfa.ErrSMSUnavailable):
		return middleware.WriteError(c, fiber.StatusServiceUnavailable, "SMS delivery is unavailable", "", "")
	}
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	h.log.Error(ctx, "mfa: "+op+" failed", "account_id", accountID, "error", err)
	return middleware.Internal(c)
}
