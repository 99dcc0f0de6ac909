package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memodams/backend/internal/audit"
	auditdomain "memodams/backend/internal/audit/domain"
	auditrepo "memodams/backend/internal/audit/repository"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/platform/rbac"
	"memodams/backend/internal/security"
	"memodams/backend/internal/server/middleware"
)

func TestList_AdminOnly(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	repo := auditrepo.NewMemoryRepository()
	logger := audit.NewLogger(repo, nil, nil)
	ctx := context.Background()
	logger.LogEvent(ctx, "u1", auditdomain.ActionLoginSuccess, "session", "")
	logger.LogEvent(ctx, "u1", auditdomain.ActionStepUpFailed, "challenge", "")
	logger.LogEvent(ctx, "u2", auditdomain.ActionLoginSuccess, "session", "")

	app := fiber.New()
	app.Use(middleware.Authenticate(security.NewAccessVerifier(tokens, nil)))
	NewHandler(repo, rbac.NewAdmins(""), logging.Nop()).Register(app.Group("/v1"))

	get := func(sub security.Subject, path string) (*http.Response, map[string]any) {
		tok, _, err := tokens.IssueAccess("s", sub)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := app.Test(req)
		require.NoError(t, err)
		out := map[string]any{}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	resp, _ := get(security.Subject{AccountID: "u1", EmailVerified: true}, "/v1/admin/audit")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	admin := security.Subject{AccountID: "a1", EmailVerified: true, Admin: true}
	resp, body := get(admin, "/v1/admin/audit?account_id=u1")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	entries, _ := body["entries"].([]any)
	assert.Len(t, entries, 2)

	_, body = get(admin, "/v1/admin/audit?action="+auditdomain.ActionLoginSuccess+"&limit=1")
	entries, _ = body["entries"].([]any)
	assert.Len(t, entries, 1)
}
