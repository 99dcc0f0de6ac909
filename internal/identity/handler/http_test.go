package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountrepo "memodams/backend/internal/account/repository"
	identityrepo "memodams/backend/internal/identity/repository"
	"memodams/backend/internal/identity/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/mail"
	"memodams/backend/internal/security"
	"memodams/backend/internal/server/middleware"
	sessionrepo "memodams/backend/internal/session/repository"
)

type testEnv struct {
	app    *fiber.App
	auth   *service.AuthService
	outbox *mail.Outbox
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	outbox := &mail.Outbox{}
	auth := service.NewAuthService(
		accountrepo.NewMemoryRepository(),
		identityrepo.NewMemoryRepository(),
		sessionrepo.NewMemoryRepository(),
		nil,
		security.NewHasher(4),
		tokens,
		outbox,
		mail.Links{BaseURL: "http://app.test"},
		nil,
		time.Hour,
	)
	app := fiber.New()
	app.Use(middleware.Authenticate(security.NewAccessVerifier(tokens, auth.SessionActive)))
	NewHandler(auth, logging.Nop()).Register(app.Group("/v1"))
	return &testEnv{app: app, auth: auth, outbox: outbox}
}

func (e *testEnv) do(t *testing.T, method, path, bearer, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) mailedToken(t *testing.T) string {
	t.Helper()
	msg, ok := e.outbox.Last()
	require.True(t, ok, "no mail sent")
	for _, field := range strings.Fields(msg.Body) {
		if u, err := url.Parse(field); err == nil && u.Query().Get("token") != "" {
			return u.Query().Get("token")
		}
	}
	t.Fatalf("no link in %q", msg.Body)
	return ""
}

func TestSignUpVerifyAndRoute(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	resp, body := env.do(t, http.MethodPost, "/v1/auth/signup", "", `{"email":"Ada@Example.com","password":"secret1","name":"Ada"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, false, body["email_verified"])

	resp, body = env.do(t, http.MethodPost, "/v1/auth/signup", "", `{"email":"ada@example.com","password":"secret1"}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "email", body["field"])

	acct, err := env.auth.Authenticate(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	tokens, err := env.auth.IssueSession(ctx, acct, "", "")
	require.NoError(t, err)

	resp, body = env.do(t, http.MethodGet, "/v1/session/route", tokens.AccessToken, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, middleware.RouteVerifyEmail, body["route"])

	resp, body = env.do(t, http.MethodGet, "/v1/sessions", tokens.AccessToken, "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, middleware.RouteVerifyEmail, body["route"])

	resp, _ = env.do(t, http.MethodGet, "/v1/auth/verify-email?token="+url.QueryEscape(env.mailedToken(t)), "", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+tokens.RefreshToken+`"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	access, _ := body["access_token"].(string)

	resp, body = env.do(t, http.MethodGet, "/v1/session/route", access, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, middleware.RouteDashboard, body["route"])

	resp, body = env.do(t, http.MethodGet, "/v1/sessions", access, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessions, _ := body["sessions"].([]any)
	assert.Len(t, sessions, 1)
}

func TestVerifyEmail_BadLink(t *testing.T) {
	env := setup(t)
	resp, body := env.do(t, http.MethodGet, "/v1/auth/verify-email?token=nope", "", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "token", body["field"])
}

func TestPasswordReset_NeverDisclosesAccounts(t *testing.T) {
	env := setup(t)
	resp, _ := env.do(t, http.MethodPost, "/v1/auth/password-reset", "", `{"email":"ghost@example.com"}`)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	_, sent := env.outbox.Last()
	assert.False(t, sent)
}

func TestChangePasswordAndLogout(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	acct, err := env.auth.SignUp(ctx, "ada@example.com", "secret1", "")
	require.NoError(t, err)
	_, err = env.auth.VerifyEmail(ctx, env.mailedToken(t))
	require.NoError(t, err)
	acct, _ = env.auth.Reload(ctx, acct.ID)
	tokens, err := env.auth.IssueSession(ctx, acct, "", "")
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodPost, "/v1/account/password", tokens.AccessToken, `{"current_password":"wrong","new_password":"secret2"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "current_password", body["field"])

	resp, _ = env.do(t, http.MethodPost, "/v1/account/password", tokens.AccessToken, `{"current_password":"secret1","new_password":"secret2"}`)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/auth/logout", tokens.AccessToken, "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+tokens.RefreshToken+`"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutInvalidatesBearer(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	acct, err := env.auth.SignUp(ctx, "ada@example.com", "secret1", "")
	require.NoError(t, err)
	_, err = env.auth.VerifyEmail(ctx, env.mailedToken(t))
	require.NoError(t, err)
	acct, _ = env.auth.Reload(ctx, acct.ID)
	tokens, err := env.auth.IssueSession(ctx, acct, "", "")
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodGet, "/v1/sessions", tokens.AccessToken, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/auth/logout", tokens.AccessToken, "")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/v1/sessions", tokens.AccessToken, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, middleware.RouteLogin, body["route"])

	resp, _ = env.do(t, http.MethodPost, "/v1/account/password", tokens.AccessToken, `{"current_password":"secret1","new_password":"secret2"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/v1/session/route", tokens.AccessToken, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRevokedSessionBearerRejected(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	acct, err := env.auth.SignUp(ctx, "ada@example.com", "secret1", "")
	require.NoError(t, err)
	_, err = env.auth.VerifyEmail(ctx, env.mailedToken(t))
	require.NoError(t, err)
	acct, _ = env.auth.Reload(ctx, acct.ID)
	first, err := env.auth.IssueSession(ctx, acct, "dev-1", "")
	require.NoError(t, err)
	second, err := env.auth.IssueSession(ctx, acct, "dev-2", "")
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodDelete, "/v1/sessions/"+first.SessionID, second.AccessToken, "")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/v1/sessions", first.AccessToken, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/v1/sessions", second.AccessToken, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
