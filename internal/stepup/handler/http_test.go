package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountrepo "memodams/backend/internal/account/repository"
	devicerepo "memodams/backend/internal/device/repository"
	deviceservice "memodams/backend/internal/device/service"
	"memodams/backend/internal/devotp"
	identityrepo "memodams/backend/internal/identity/repository"
	identityservice "memodams/backend/internal/identity/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/mail"
	"memodams/backend/internal/mfa"
	mfarepo "memodams/backend/internal/mfa/repository"
	mfaservice "memodams/backend/internal/mfa/service"
	profilerepo "memodams/backend/internal/profile/repository"
	profileservice "memodams/backend/internal/profile/service"
	"memodams/backend/internal/security"
	"memodams/backend/internal/server/middleware"
	sessionrepo "memodams/backend/internal/session/repository"
	"memodams/backend/internal/stepup/domain"
	stepuprepo "memodams/backend/internal/stepup/repository"
	"memodams/backend/internal/stepup/service"
)

const device = "0b9f4f6e-3c2a-4d1e-9a8b-7c6d5e4f3a2b"

type testEnv struct {
	app     *fiber.App
	tokens  *security.TokenProvider
	devices *deviceservice.Store
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	access := security.NewAccessVerifier(tokens, nil)
	hasher := security.NewHasher(4)
	accounts := accountrepo.NewMemoryRepository()
	profiles := profileservice.NewProfileService(profilerepo.NewMemoryRepository(), hasher)
	auth := identityservice.NewAuthService(accounts, identityrepo.NewMemoryRepository(), sessionrepo.NewMemoryRepository(),
		profiles, hasher, tokens, &mail.Outbox{}, mail.Links{BaseURL: "http://app.test"}, nil, time.Hour)
	codes := mfa.NewCodeSender(nil, devotp.NewMemoryStore(), true, time.Minute)
	devices := deviceservice.NewStore(devicerepo.NewMemoryRepository(), 0, nil, nil)
	svc := service.NewService(service.Deps{
		Challenges:  stepuprepo.NewMemoryRepository(),
		Credentials: auth,
		Documents:   profiles,
		Factors:     mfaservice.NewFactorService(accounts, mfarepo.NewMemoryRepository(), codes, nil, "memodams"),
		Devices:     devices,
		Codes:       codes,
		Answers:     hasher,
		Tokens:      access,
	}, service.Config{MaxAttempts: 2, LockoutThreshold: 4})

	acct, err := auth.SignUp(ctx, "u1@example.com", "secret1", "")
	require.NoError(t, err)
	require.NoError(t, accounts.SetEmailVerified(ctx, acct.ID))
	require.NoError(t, profiles.SetSecurityQuestion(ctx, acct.ID, "Pet?", "pet"))

	app := fiber.New()
	app.Use(middleware.RealIP(), middleware.DeviceCookie(false), middleware.Authenticate(access))
	NewHandler(svc, logging.Nop()).Register(app.Group("/v1"))
	return &testEnv{app: app, tokens: tokens, devices: devices}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.DeviceCookieName, Value: device})
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	out := map[string]any{}
	if resp.StatusCode != fiber.StatusAccepted {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestSecurityQuestionFlow(t *testing.T) {
	env := setup(t)

	status, body := env.do(t, http.MethodPost, "/v1/auth/login", `{"email":"u1@example.com","password":"secret1"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, domain.RouteVerifySecurityQuestion, body["route"])
	assert.Equal(t, "Pet?", body["security_question"])
	id, _ := body["challenge_id"].(string)
	require.NotEmpty(t, id)

	status, body = env.do(t, http.MethodGet, "/v1/stepup/challenges/"+id, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, string(domain.StateAwaitingSecurityQuestion), body["state"])

	status, body = env.do(t, http.MethodPost, "/v1/stepup/challenges/"+id+"/answer", `{"answer":"dog"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, msgIncorrectAnswer, body["error"])
	assert.Equal(t, "answer", body["field"])

	status, body = env.do(t, http.MethodPost, "/v1/stepup/challenges/"+id+"/verify", `{"code":"123456"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, domain.RouteVerifySecurityQuestion, body["route"])

	status, body = env.do(t, http.MethodPost, "/v1/stepup/challenges/"+id+"/answer", `{"answer":" PET "}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, domain.RouteDashboard, body["route"])
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])

	status, body = env.do(t, http.MethodGet, "/v1/stepup/challenges/"+id, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, msgStaleChallenge, body["error"])
	assert.Equal(t, domain.RouteLogin, body["route"])
}

func TestResumeWithBearerGoesToDashboard(t *testing.T) {
	env := setup(t)
	tok, _, err := env.tokens.IssueAccess("sess-1", security.Subject{AccountID: "u1", EmailVerified: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/stepup/challenges/stale", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, domain.RouteDashboard, body["route"])
}

func TestInvalidCredential(t *testing.T) {
	env := setup(t)
	status, body := env.do(t, http.MethodPost, "/v1/auth/login", `{"email":"u1@example.com","password":"nope"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, msgInvalidCredential, body["error"])
	assert.Equal(t, "password", body["field"])

	status, _ = env.do(t, http.MethodPost, "/v1/auth/login", `not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestTooManyAttempts(t *testing.T) {
	env := setup(t)
	_, body := env.do(t, http.MethodPost, "/v1/auth/login", `{"email":"u1@example.com","password":"secret1"}`)
	id := body["challenge_id"].(string)

	status, _ := env.do(t, http.MethodPost, "/v1/stepup/challenges/"+id+"/answer", `{"answer":"a"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, body = env.do(t, http.MethodPost, "/v1/stepup/challenges/"+id+"/answer", `{"answer":"b"}`)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, domain.RouteLogin, body["route"])
}

func TestLoginRefusedWhileLocked(t *testing.T) {
	env := setup(t)
	for round := 0; round < 2; round++ {
		status, body := env.do(t, http.MethodPost, "/v1/auth/login", `{"email":"u1@example.com","password":"secret1"}`)
		require.Equal(t, fiber.StatusOK, status)
		id := body["challenge_id"].(string)
		env.do(t, http.MethodPost, "/v1/stepup/challenges/"+id+"/answer", `{"answer":"a"}`)
		status, _ = env.do(t, http.MethodPost, "/v1/stepup/challenges/"+id+"/answer", `{"answer":"b"}`)
		require.Equal(t, fiber.StatusTooManyRequests, status)
	}

	status, body := env.do(t, http.MethodPost, "/v1/auth/login", `{"email":"u1@example.com","password":"secret1"}`)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, msgTooManyAttempts, body["error"])
	assert.Equal(t, domain.RouteLogin, body["route"])
}

func TestAbort(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	require.NoError(t, env.devices.MarkDeviceVerified(ctx, "other-account", device, ""))
	_, body := env.do(t, http.MethodPost, "/v1/auth/login", `{"email":"u1@example.com","password":"secret1"}`)
	id := body["challenge_id"].(string)

	status, body := env.do(t, http.MethodPost, "/v1/stepup/abort", `{"challenge_id":"`+id+`"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, domain.RouteLogin, body["route"])

	ok, err := env.devices.IsDeviceVerified(ctx, "other-account", device)
	require.NoError(t, err)
	assert.False(t, ok)

	status, _ = env.do(t, http.MethodGet, "/v1/stepup/challenges/"+id, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
