package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/identity/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/server/middleware"
)

// Handler serves sign-up, email verification, password management and session upkeep.
// Sign-in itself goes through the step-up handler.
type Handler struct {
	auth *service.AuthService
	log  logging.Logger
}

func NewHandler(auth *service.AuthService, log logging.Logger) *Handler {
	return &Handler{auth: auth, log: log}
}

// Register mounts the routes on r. r must run Authenticate; guards are applied per route.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/auth/signup", h.SignUp)
	r.Get("/auth/verify-email", h.VerifyEmail)
	r.Post("/auth/verify-email/resend", middleware.RequireAuth(), h.ResendVerification)
	r.Post("/auth/password-reset", h.RequestPasswordReset)
	r.Post("/auth/password-reset/confirm", h.ResetPassword)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.Get("/session/route", middleware.RequireAuth(), h.SessionRoute)
	r.Get("/sessions", middleware.RequireSession(), h.ListSessions)
	r.Delete("/sessions/:id", middleware.RequireSession(), h.RevokeSession)
	r.Post("/account/password", middleware.RequireSession(), h.ChangePassword)
}

type tokensResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccountID    string    `json:"account_id"`
}

func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	acct, err := h.auth.SignUp(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return h.fail(c, "sign up", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"account_id":     acct.ID,
		"email":          acct.Email,
		"email_verified": acct.EmailVerified,
		"route":          middleware.RouteLogin,
	})
}

// VerifyEmail handles the link mailed at sign-up. The caller's existing access token still
// carries email_verified=false until it is refreshed.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	acct, err := h.auth.VerifyEmail(c.UserContext(), c.Query("token"))
	if err != nil {
		return h.fail(c, "verify email", err)
	}
	return c.JSON(fiber.Map{"account_id": acct.ID, "email_verified": true, "route": middleware.RouteDashboard})
}

func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	if err := h.auth.SendVerificationEmail(ctx, accountID); err != nil {
		return h.fail(c, "resend verification", err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// RequestPasswordReset always answers 202 so the response never discloses whether the
// address has an account.
func (h *Handler) RequestPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	ctx := c.UserContext()
	if err := h.auth.RequestPasswordReset(ctx, req.Email); err != nil {
		h.log.Warn(ctx, "identity: password reset mail failed", "error", err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return h.fail(c, "reset password", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	tokens, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return c.JSON(tokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		AccountID:    tokens.AccountID,
	})
}

// Logout revokes the session named by the refresh token in the body, or by the bearer.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return middleware.BadRequest(c)
		}
	}
	ctx := c.UserContext()
	sessionID, _ := middleware.SessionID(ctx)
	if err := h.auth.Logout(ctx, req.RefreshToken, sessionID); err != nil {
		return h.fail(c, "logout", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SessionRoute tells the client which page the bearer belongs on.
func (h *Handler) SessionRoute(c *fiber.Ctx) error {
	claims, _ := middleware.ClaimsFrom(c.UserContext())
	route := middleware.RouteDashboard
	if !claims.EmailVerified {
		route = middleware.RouteVerifyEmail
	}
	return c.JSON(fiber.Map{"route": route, "email_verified": claims.EmailVerified, "admin": claims.Admin})
}

type sessionResponse struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Current    bool       `json:"current"`
}

func (h *Handler) ListSessions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	current, _ := middleware.SessionID(ctx)
	list, err := h.auth.ListSessions(ctx, accountID)
	if err != nil {
		return h.fail(c, "list sessions", err)
	}
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, sessionResponse{
			ID:         s.ID,
			DeviceID:   s.DeviceID,
			IPAddress:  s.IPAddress,
			CreatedAt:  s.CreatedAt,
			LastSeenAt: s.LastSeenAt,
			ExpiresAt:  s.ExpiresAt,
			Current:    s.ID == current,
		})
	}
	return c.JSON(fiber.Map{"sessions": out})
}

func (h *Handler) RevokeSession(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	if err := h.auth.RevokeSession(ctx, accountID, c.Params("id")); err != nil {
		return h.fail(c, "revoke session", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c)
	}
	ctx := c.UserContext()
	accountID, _ := middleware.AccountID(ctx)
	err := h.auth.ChangePassword(ctx, accountID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return middleware.WriteError(c, fiber.StatusUnauthorized, "Current password is incorrect.", "current_password", "")
	}
	if err != nil {
		return h.fail(c, "change password", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "email", "")
	case errors.Is(err, service.ErrWeakPassword):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "password", "")
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return middleware.WriteError(c, fiber.StatusConflict, err.Error(), "email", "")
	case errors.Is(err, service.ErrInvalidCredentials):
		return middleware.WriteError(c, fiber.StatusUnauthorized, err.Error(), "", middleware.RouteLogin)
	case errors.Is(err, service.ErrInvalidLink):
		return middleware.WriteError(c, fiber.StatusBadRequest, err.Error(), "token", "")
	case errors.Is(err, service.ErrInvalidRefreshToken), errors.Is(err, service.ErrRefreshTokenReuse):
		return middleware.WriteError(c, fiber.StatusUnauthorized, err.Error(), "", middleware.RouteLogin)
	case errors.Is(err, service.ErrSessionNotFound):
		return middleware.WriteError(c, fiber.StatusNotFound, err.Error(), "", "")
	case errors.Is(err, service.ErrAccountNotFound):
		return middleware.WriteError(c, fiber.StatusUnauthorized, "Invalid session. Please log in again.", "", middleware.RouteLogin)
	}
	h.log.Error(c.UserContext(), "identity: "+op+" failed", "error", err)
	return middleware.Internal(c)
}
