package listing

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
	"github.com/rajivgeraev/scentswap-api/internal/store/memory"
)

func newTestApp() (*fiber.App, *ListingService) {
	svc := NewListingService(&config.Config{JWTSecret: "test-secret"}, memory.New(), zap.NewNop())
	app := fiber.New()
	svc.SetupRoutes(app)
	return app, svc
}

func send(t *testing.T, app *fiber.App, svc *ListingService, method, path, uid string, body any) (int, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	token, err := svc.jwtService.GenerateToken(uid)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestListingLifecycle(t *testing.T) {
	app, svc := newTestApp()

	code, body := send(t, app, svc, http.MethodPost, "/api/listings/create", "alice", map[string]string{
		"title": "  Baccarat Rouge 540 ", "brand": "MFK", "amount_left": "70ml",
	})
	require.Equal(t, http.StatusCreated, code, body)
	listing := body["listing"].(map[string]any)
	id := listing["id"].(string)
	assert.Equal(t, "Baccarat Rouge 540", listing["title"])
	assert.Equal(t, "swap", listing["type"])
	assert.Equal(t, "active", listing["status"])

	code, body = send(t, app, svc, http.MethodPut, "/api/listings/"+id, "bob", map[string]string{"title": "Моё"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["error"])

	code, body = send(t, app, svc, http.MethodPut, "/api/listings/"+id, "alice", map[string]string{"title": "BR540", "amount_left": "60ml"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "60ml", body["listing"].(map[string]any)["amount_left"])

	code, body = send(t, app, svc, http.MethodDelete, "/api/listings/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, ListingStatusArchived, body["listing"].(map[string]any)["status"])

	code, body = send(t, app, svc, http.MethodPut, "/api/listings/"+id, "alice", map[string]string{"title": "BR540"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_state", body["error"])

	code, body = send(t, app, svc, http.MethodGet, "/api/listings/"+id, "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, ListingStatusArchived, body["listing"].(map[string]any)["status"])
}

func TestCreateListing_Validation(t *testing.T) {
	app, svc := newTestApp()

	code, body := send(t, app, svc, http.MethodPost, "/api/listings/create", "alice", map[string]string{"title": " "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", body["error"])

	code, _ = send(t, app, svc, http.MethodPost, "/api/listings/create", "alice", map[string]string{"title": "X", "type": "auction"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = send(t, app, svc, http.MethodGet, "/api/listings/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}
