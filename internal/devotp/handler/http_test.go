package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memodams/backend/internal/devotp"
)

func TestGetOTP(t *testing.T) {
	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "challenge-1", "123456", time.Now().Add(time.Minute))
	app := fiber.New()
	NewHandler(store).Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dev/otp/challenge-1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "123456", body["otp"])
	assert.Equal(t, devOTPNote, body["note"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/dev/otp/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
