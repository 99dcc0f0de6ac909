// Package handler exposes step-up sign-in over HTTP. Every error body carries the route
// the browser should show next.
package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/logging"
	"memodams/backend/internal/mfa"
	"memodams/backend/internal/server/middleware"
	"memodams/backend/internal/stepup/domain"
	"memodams/backend/internal/stepup/service"
)

const (
	msgInvalidCredential = "Invalid email or password."
	msgInvalidCode       = "Invalid verification code. Please try again."
	msgIncorrectAnswer   = "Incorrect answer. Please try again."
	msgStaleChallenge    = "Invalid session. Please log in again."
	msgTooManyAttempts   = "Too many failed attempts. Please log in again."
	msgWrongStep         = "That step is not available right now."
)

type Handler struct {
	svc *service.Service
	log logging.Logger
}

func NewHandler(svc *service.Service, log logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the public sign-in routes. r must run the DeviceCookie and Authenticate middleware.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/auth/login", h.SignIn)
	r.Post("/stepup/abort", h.Abort)
	r.Get("/stepup/challenges/:id", h.Resume)
	r.Post("/stepup/challenges/:id/send-code", h.SendCode)
	r.Post("/stepup/challenges/:id/verify", h.VerifyFactor)
	r.Post("/stepup/challenges/:id/answer", h.Answer)
	r.Post("/stepup/challenges/:id/resend-verification", h.ResendVerification)
	r.Post("/stepup/challenges/:id/recheck", h.Recheck)
}

type resultResponse struct {
	State            domain.State        `json:"state"`
	Route            string              `json:"route"`
	ChallengeID      string              `json:"challenge_id,omitempty"`
	Hints            []domain.FactorHint `json:"hints,omitempty"`
	SecurityQuestion string              `json:"security_question,omitempty"`
	Email            string              `json:"email,omitempty"`
	ExpiresAt        *time.Time          `json:"expires_at,omitempty"`
	AccessToken      string              `json:"access_token,omitempty"`
	RefreshToken     string              `json:"refresh_token,omitempty"`
	TokenExpiresAt   *time.Time          `json:"token_expires_at,omitempty"`
}

func toResponse(res *service.Result) resultResponse {
	out := resultResponse{
		State:            res.State,
		Route:            res.Route,
		ChallengeID:      res.ChallengeID,
		Hints:            res.Hints,
		SecurityQuestion: res.SecurityQuestion,
		Email:            res.Email,
	}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		out.ExpiresAt = &exp
	}
	if res.Tokens != nil {
		out.AccessToken = res.Tokens.AccessToken
		out.RefreshToken = res.Tokens.RefreshToken
		exp := res.Tokens.ExpiresAt
		out.TokenExpiresAt = &exp
	}
	return out
}

func client(c *fiber.Ctx) service.Client {
	ctx := c.UserContext()
	return service.Client{
		DeviceID:  middleware.DeviceID(ctx),
		IP:        middleware.ClientIP(ctx),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	res, err := h.svc.SignIn(c.UserContext(), req.Email, req.Password, client(c))
	if err != nil {
		return h.fail(c, "sign in", err)
	}
	return c.JSON(toResponse(res))
}

// Resume serves GET /v1/stepup/challenges/:id for a freshly loaded step-up page.
func (h *Handler) Resume(c *fiber.Ctx) error {
	ctx := c.UserContext()
	bearer := middleware.ExtractBearer(c.Get(fiber.HeaderAuthorization))
	res, err := h.svc.Resume(ctx, c.Params("id"), middleware.DeviceID(ctx), bearer)
	if err != nil {
		return h.fail(c, "resume", err)
	}
	return c.JSON(toResponse(res))
}

func (h *Handler) SendCode(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := h.svc.SendFactorCode(ctx, c.Params("id"), middleware.DeviceID(ctx)); err != nil {
		return h.fail(c, "send code", err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handler) VerifyFactor(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	res, err := h.svc.VerifyFactor(c.UserContext(), c.Params("id"), req.Code, client(c))
	if err != nil {
		return h.fail(c, "verify factor", err)
	}
	return c.JSON(toResponse(res))
}

func (h *Handler) Answer(c *fiber.Ctx) error {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	res, err := h.svc.AnswerSecurityQuestion(c.UserContext(), c.Params("id"), req.Answer, client(c))
	if err != nil {
		return h.fail(c, "answer", err)
	}
	return c.JSON(toResponse(res))
}

func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := h.svc.ResendVerification(ctx, c.Params("id"), middleware.DeviceID(ctx)); err != nil {
		return h.fail(c, "resend verification", err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handler) Recheck(c *fiber.Ctx) error {
	res, err := h.svc.RecheckVerification(c.UserContext(), c.Params("id"), client(c))
	if err != nil {
		return h.fail(c, "recheck", err)
	}
	return c.JSON(toResponse(res))
}

// Abort handles "log out / start over". The challenge id is optional.
func (h *Handler) Abort(c *fiber.Ctx) error {
	var req struct {
		ChallengeID string `json:"challenge_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return middleware.BadRequest(c)
		}
	}
	ctx := c.UserContext()
	if err := h.svc.Abort(ctx, req.ChallengeID, middleware.DeviceID(ctx)); err != nil {
		return h.fail(c, "abort", err)
	}
	return c.JSON(fiber.Map{"state": domain.StateUnauthenticated, "route": domain.RouteLogin})
}

func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredential):
		return middleware.WriteError(c, fiber.StatusUnauthorized, msgInvalidCredential, "password", domain.RouteLogin)
	case errors.Is(err, service.ErrInvalidSecondFactorCode):
		return middleware.WriteError(c, fiber.StatusBadRequest, msgInvalidCode, "code", "")
	case errors.Is(err, service.ErrInvalidSecurityAnswer):
		return middleware.WriteError(c, fiber.StatusBadRequest, msgIncorrectAnswer, "answer", "")
	case errors.Is(err, service.ErrStaleOrMissingChallenge):
		return middleware.WriteError(c, fiber.StatusUnauthorized, msgStaleChallenge, "", domain.RouteLogin)
	case errors.Is(err, service.ErrTooManyAttempts):
		return middleware.WriteError(c, fiber.StatusTooManyRequests, msgTooManyAttempts, "", domain.RouteLogin)
	case errors.Is(err, service.ErrWrongStage):
		return middleware.WriteError(c, fiber.StatusConflict, msgWrongStep, "", h.currentRoute(c))
	case errors.Is(err, mfa.ErrSMSUnavailable):
		return middleware.WriteError(c, fiber.StatusServiceUnavailable, "SMS delivery is unavailable. Please try again later.", "", "")
	}
	h.log.Error(c.UserContext(), "stepup: "+op+" failed", "error", err)
	return middleware.Internal(c)
}

// currentRoute looks up where the challenge actually stands.
func (h *Handler) currentRoute(c *fiber.Ctx) string {
	ctx := c.UserContext()
	res, err := h.svc.Resume(ctx, c.Params("id"), middleware.DeviceID(ctx), "")
	if err != nil {
		return domain.RouteLogin
	}
	return res.Route
}
