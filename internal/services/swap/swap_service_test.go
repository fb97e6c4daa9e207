package swap

import (
	"bytes"
	"context"
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
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
	"github.com/rajivgeraev/scentswap-api/internal/store/memory"
	engine "github.com/rajivgeraev/scentswap-api/internal/swap"
)

type harness struct {
	t       *testing.T
	app     *fiber.App
	store   *memory.Store
	service *SwapService
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{JWTSecret: "test-secret"}
	}

	s := memory.New()
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, u := range []string{"alice", "bob"} {
			if err := tx.PutUser(ctx, &models.UserProfile{UID: u, Username: u}); err != nil {
				return err
			}
		}
		listings := []*models.Listing{
			{ID: "l1", OwnerUID: "alice", Title: "Oud", Type: models.ListingTypeSwap, Status: models.ListingStatusActive},
			{ID: "l2", OwnerUID: "bob", Title: "Vetiver", Type: models.ListingTypeSwap, Status: models.ListingStatusActive},
			{ID: "l3", OwnerUID: "bob", Title: "Iris", Type: models.ListingTypeSwap, Status: "archived"},
		}
		for _, l := range listings {
			if err := tx.PutListing(ctx, l); err != nil {
				return err
			}
		}
		return nil
	}))

	svc := NewSwapService(cfg, engine.New(s), zap.NewNop())
	app := fiber.New()
	svc.SetupRoutes(app)
	return &harness{t: t, app: app, store: s, service: svc}
}

func (h *harness) do(method, path, uid string, body any) (int, map[string]any) {
	h.t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		token, err := h.service.jwtService.GenerateToken(uid)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (h *harness) create() string {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/api/swaps", "alice", map[string]string{
		"offered_listing_id":   "l1",
		"requested_listing_id": "l2",
		"requested_from_uid":   "bob",
		"message":              "Обменяемся?",
	})
	require.Equal(h.t, http.StatusCreated, code, body)
	return body["swap_request_id"].(string)
}

func (h *harness) accept(id string) string {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/api/swaps/"+id+"/accept", "bob", nil)
	require.Equal(h.t, http.StatusOK, code, body)
	return body["message_id"].(string)
}

func TestCreateSwapRequest(t *testing.T) {
	h := newHarness(t, nil)

	id := h.create()
	assert.NotEmpty(t, id)

	code, body := h.do(http.MethodPost, "/api/swaps", "alice", map[string]string{
		"offered_listing_id":   "l1",
		"requested_listing_id": "l2",
		"requested_from_uid":   "bob",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, false, body["success"])
}

func TestCreateSwapRequest_ErrorMapping(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name     string
		uid      string
		body     map[string]string
		wantCode int
		wantKind string
	}{
		{
			name:     "no token",
			body:     map[string]string{"offered_listing_id": "l1", "requested_listing_id": "l2", "requested_from_uid": "bob"},
			wantCode: http.StatusUnauthorized,
			wantKind: "unauthenticated",
		},
		{
			name:     "missing fields",
			uid:      "alice",
			body:     map[string]string{"offered_listing_id": "l1"},
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_request",
		},
		{
			name:     "not the owner",
			uid:      "bob",
			body:     map[string]string{"offered_listing_id": "l1", "requested_listing_id": "l2", "requested_from_uid": "alice"},
			wantCode: http.StatusForbidden,
			wantKind: "forbidden",
		},
		{
			name:     "archived listing",
			uid:      "alice",
			body:     map[string]string{"offered_listing_id": "l1", "requested_listing_id": "l3", "requested_from_uid": "bob"},
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_state",
		},
		{
			name:     "unknown listing",
			uid:      "alice",
			body:     map[string]string{"offered_listing_id": "l1", "requested_listing_id": "nope", "requested_from_uid": "bob"},
			wantCode: http.StatusNotFound,
			wantKind: "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := h.do(http.MethodPost, "/api/swaps", tt.uid, tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantKind, body["error"])
		})
	}
}

func TestSwapLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create()
	msgID := h.accept(id)

	code, body := h.do(http.MethodPost, "/api/swaps/"+id+"/confirm-address", "alice", map[string]string{
		"user_uid": "alice", "address": "Москва, Тверская 1", "user_role": "offeredBy", "message_id": msgID,
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["both_confirmed"])

	code, body = h.do(http.MethodPost, "/api/swaps/"+id+"/confirm-address", "bob", map[string]string{
		"user_uid": "bob", "address": "Казань, Баумана 2", "user_role": "requestedFrom", "message_id": msgID,
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["both_confirmed"])
	assert.Equal(t, "pending_shipment", body["new_status"])

	for _, uid := range []string{"alice", "bob"} {
		code, body = h.do(http.MethodPost, "/api/swaps/"+id+"/confirm-shipment", uid, map[string]string{
			"user_uid": uid, "tracking_number": "RU" + uid, "message_id": msgID,
		})
		require.Equal(t, http.StatusOK, code, body)
	}
	assert.Equal(t, true, body["both_shipped"])
	assert.Equal(t, "swap_completed", body["new_status"])

	code, body = h.do(http.MethodGet, "/api/swaps/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, code)
	swap := body["swap"].(map[string]any)
	assert.Equal(t, "swap_completed", swap["status"])

	code, body = h.do(http.MethodPost, "/api/swaps/"+id+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_state", body["error"])
}

func TestConfirmAddress_StateErrorsAre500(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create()

	// Обмен ещё не принят
	code, body := h.do(http.MethodPost, "/api/swaps/"+id+"/confirm-address", "alice", map[string]string{
		"user_uid": "alice", "address": "Москва", "user_role": "offeredBy", "message_id": "m1",
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "invalid_state", body["error"])
	assert.Equal(t, false, body["success"])

	code, body = h.do(http.MethodPost, "/api/swaps/missing/confirm-address", "alice", map[string]string{
		"user_uid": "alice", "address": "Москва", "user_role": "offeredBy", "message_id": "m1",
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "not_found", body["error"])

	code, body = h.do(http.MethodPost, "/api/swaps/"+id+"/confirm-address", "alice", map[string]string{
		"user_uid": "bob", "address": "Москва", "user_role": "requestedFrom", "message_id": "m1",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["error"])
}

func TestGetMySwaps(t *testing.T) {
	h := newHarness(t, nil)
	h.create()

	code, body := h.do(http.MethodGet, "/api/swaps?status=swap_request", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["swaps"], 1)

	code, body = h.do(http.MethodGet, "/api/swaps?status=swap_completed", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["swaps"], 0)

	code, _ = h.do(http.MethodGet, "/api/swaps?status=bogus", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateSwapRequest_RateLimited(t *testing.T) {
	h := newHarness(t, &config.Config{JWTSecret: "test-secret", RateLimitPerMin: 6})

	h.create()
	code, body := h.do(http.MethodPost, "/api/swaps", "alice", map[string]string{
		"offered_listing_id": "l1", "requested_listing_id": "l2", "requested_from_uid": "bob",
	})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", body["error"])

	// Другие маршруты лимитом не ограничены
	code, _ = h.do(http.MethodGet, "/api/swaps", "alice", nil)
	assert.Equal(t, http.StatusOK, code)
}
