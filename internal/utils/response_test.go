package utils

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusConflict, StatusFor(apperr.KindInvalidState, nil))
	assert.Equal(t, fiber.StatusInternalServerError,
		StatusFor(apperr.KindInvalidState, StatusOverrides{apperr.KindInvalidState: fiber.StatusInternalServerError}))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor("unknown", nil))
}

func TestFail(t *testing.T) {
	app := fiber.New()
	app.Get("/blocked", func(c fiber.Ctx) error {
		return Fail(c, zap.NewNop(), apperr.Blocked("active_swap", "Есть активный обмен"), nil)
	})
	app.Get("/boom", func(c fiber.Ctx) error {
		return Fail(c, zap.NewNop(), errors.New("boom"), nil)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/blocked", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, "active_swap", body["reason"])

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Внутренняя ошибка сервера", body["message"])
}
