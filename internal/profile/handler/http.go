package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/logging"
	"memodams/backend/internal/profile/domain"
	"memodams/backend/internal/profile/service"
	"memodams/backend/internal/server/middleware"
)

type Handler struct {
	profiles *service.ProfileService
	log      logging.Logger
}

func NewHandler(profiles *service.ProfileService, log logging.Logger) *Handler {
	return &Handler{profiles: profiles, log: log}
}

// Register mounts the profile routes on r behind RequireSession.
func (h *Handler) Register(r fiber.Router) {
	session := middleware.RequireSession()
	r.Get("/profile", session, h.Get)
	r.Patch("/profile", session, h.Update)
	r.Put("/profile/security-question", session, h.SetSecurityQuestion)
	r.Delete("/profile/security-question", session, h.ClearSecurityQuestion)
}

// profileResponse omits the answer hash.
type profileResponse struct {
	Bio                 string  `json:"bio"`
	AvatarURL           string  `json:"avatar_url"`
	Birthday            *string `json:"birthday,omitempty"`
	SecurityQuestion    string  `json:"security_question,omitempty"`
	HasSecurityQuestion bool    `json:"has_security_question"`
}

func toResponse(p *domain.Profile) profileResponse {
	out := profileResponse{
		Bio:                 p.Bio,
		AvatarURL:           p.AvatarURL,
		SecurityQuestion:    p.SecurityQuestion,
		HasSecurityQuestion: p.HasSecurityQuestion(),
	}
	if p.Birthday != nil {
		b := p.Birthday.Format(time.DateOnly)
		out.Birthday = &b
	}
	return out
}

func (h *Handler) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	p, err := h.profiles.Get(ctx, accountID)
	if err != nil {
		return h.fail(c, "get", err)
	}
	return c.JSON(toResponse(p))
}

func (h *Handler) Update(c *fiber.Ctx) error {
	var req struct {
		Bio       *string `json:"bio"`
		AvatarURL *string `json:"avatar_url"`
		Birthday  *string `json:"birthday"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	p, err := h.profiles.Update(ctx, accountID, service.Update{Bio: req.Bio, AvatarURL: req.AvatarURL, Birthday: req.Birthday})
	if err != nil {
		return h.fail(c, "update", err)
	}
	return c.JSON(toResponse(p))
}

func (h *Handler) SetSecurityQuestion(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	if err := h.profiles.SetSecurityQuestion(ctx, accountID, req.Question, req.Answer); err != nil {
		return h.fail(c, "set security question", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ClearSecurityQuestion(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	if err := h.profiles.ClearSecurityQuestion(ctx, accountID); err != nil {
		return h.fail(c, "clear security question", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrBioTooLong):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "bio", "")
	case errors.Is(err, service.ErrInvalidAvatarURL):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "avatar_url", "")
	case errors.Is(err, service.ErrInvalidBirthday):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "birthday", "")
	case errors.Is(err, service.ErrBirthdayAlreadySet):
		return middleware.WriteError(c, fiber.StatusConflict, err.Error(), "birthday", "")
	case errors.Is(err, service.ErrQuestionRequired):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "question", "")
	}
	h.log.Error(c.UserContext(), "profile: "+op+" failed", "error", err)
	return middleware.Internal(c)
}
