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

	"memodams/backend/internal/device/repository"
	"memodams/backend/internal/device/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/security"
	"memodams/backend/internal/server/middleware"
)

const currentDevice = "6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"

func setup(t *testing.T) (*fiber.App, *service.Store, string) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	store := service.NewStore(repository.NewMemoryRepository(), 0, nil, nil)

	app := fiber.New()
	app.Use(middleware.DeviceCookie(false), middleware.Authenticate(security.NewAccessVerifier(tokens, nil)))
	NewHandler(store, logging.Nop()).Register(app.Group("/v1"))

	tok, _, err := tokens.IssueAccess("sess-1", security.Subject{AccountID: "u1", EmailVerified: true})
	require.NoError(t, err)
	return app, store, "Bearer " + tok
}

func request(method, path, auth string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", auth)
	req.AddCookie(&http.Cookie{Name: middleware.DeviceCookieName, Value: currentDevice})
	return req
}

func TestList(t *testing.T) {
	app, store, auth := setup(t)
	ctx := context.Background()
	require.NoError(t, store.MarkDeviceVerified(ctx, "u1", currentDevice, "Firefox"))
	require.NoError(t, store.MarkDeviceVerified(ctx, "u1", "other-device", ""))
	require.NoError(t, store.MarkDeviceVerified(ctx, "u2", "u2-device", ""))

	resp, err := app.Test(request(http.MethodGet, "/v1/devices", auth))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Devices []deviceResponse `json:"devices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Devices, 2)
	currents := 0
	for _, d := range body.Devices {
		if d.Current {
			currents++
			assert.Equal(t, currentDevice, d.DeviceID)
			assert.Equal(t, "Firefox", d.Label)
		}
	}
	assert.Equal(t, 1, currents)
}

func TestRevoke(t *testing.T) {
	app, store, auth := setup(t)
	require.NoError(t, store.MarkDeviceVerified(context.Background(), "u1", "dev-x", ""))

	resp, err := app.Test(request(http.MethodDelete, "/v1/devices/dev-x", auth))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	ok, _ := store.IsDeviceVerified(context.Background(), "u1", "dev-x")
	assert.False(t, ok)

	resp, err = app.Test(request(http.MethodDelete, "/v1/devices/dev-x", auth))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRequiresSession(t *testing.T) {
	app, _, _ := setup(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/devices", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
