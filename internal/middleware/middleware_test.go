package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/scentswap-api/internal/utils"
)

func TestAuthMiddleware(t *testing.T) {
	jwt := utils.NewJWTService("secret")
	app := fiber.New()
	app.Use(AuthMiddleware(jwt))
	app.Get("/me", func(c fiber.Ctx) error { return c.SendString(UserID(c)) })

	token, err := jwt.GenerateToken("42")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"bad scheme", "Basic abc", fiber.StatusUnauthorized},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized},
		{"valid", "Bearer " + token, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestUserRateLimiter_PerUser(t *testing.T) {
	jwt := utils.NewJWTService("secret")
	limiter := NewUserRateLimiter(6)

	app := fiber.New()
	app.Use(AuthMiddleware(jwt), limiter.Handler())
	app.Get("/me", func(c fiber.Ctx) error { return c.SendString(UserID(c)) })

	call := func(uid string) int {
		token, err := jwt.GenerateToken(uid)
		require.NoError(t, err)
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	// burst = 1: второй запрос подряд отклоняется, другой пользователь не затронут
	assert.Equal(t, fiber.StatusOK, call("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, call("a"))
	assert.Equal(t, fiber.StatusOK, call("b"))
}
