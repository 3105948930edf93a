package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caveau-digitale/caveaud/internal/session"
	"github.com/caveau-digitale/caveaud/storage"
)

func newTestServer(t *testing.T) (*Server, *echo.Echo) {
	t.Helper()
	store, err := storage.NewCredentialStore(filepath.Join(t.TempDir(), "caveau.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sess := session.New(store)
	_, err = sess.Start(context.Background())
	require.NoError(t, err)

	srv := NewServer("127.0.0.1", 0, sess, nil, nil, nil, nil)
	return srv, srv.router()
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp map[string]any
	if rec.Body.Len() > 0 && json.Valid(rec.Body.Bytes()) {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

// onboardHTTP walks the full first-run flow over the wire.
func onboardHTTP(t *testing.T, e *echo.Echo, pin string) {
	t.Helper()
	rec, resp := doJSON(t, e, http.MethodPost, "/wallet/create", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp["words"], 12)

	rec, _ = doJSON(t, e, http.MethodPost, "/wallet/confirm-seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = doJSON(t, e, http.MethodPost, "/wallet/pin", map[string]string{"pin": pin})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "confirm", resp["pin_stage"])

	rec, resp = doJSON(t, e, http.MethodPost, "/wallet/pin", map[string]string{"pin": pin})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "unlocked", resp["state"])
}

func TestPing(t *testing.T) {
	_, e := newTestServer(t)
	rec, _ := doJSON(t, e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOnboardingOverHTTP(t *testing.T) {
	_, e := newTestServer(t)

	rec, resp := doJSON(t, e, http.MethodGet, "/wallet/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "welcome", resp["state"])
	assert.Equal(t, false, resp["provisioned"])

	onboardHTTP(t, e, "123456")

	rec, resp = doJSON(t, e, http.MethodGet, "/wallet/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unlocked", resp["state"])
	assert.Equal(t, true, resp["provisioned"])
	assert.NotEmpty(t, resp["address"])
	assert.Contains(t, resp["short_address"], "…")
}

func TestWrongPinSurfacesGenericMessage(t *testing.T) {
	_, e := newTestServer(t)
	onboardHTTP(t, e, "123456")

	rec, _ := doJSON(t, e, http.MethodPost, "/wallet/lock", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doJSON(t, e, http.MethodPost, "/wallet/unlock", map[string]string{"pin": "654321"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "wrong PIN", resp["error"])
	assert.Equal(t, true, resp["retryable"])

	// still retryable with the right PIN
	rec, resp = doJSON(t, e, http.MethodPost, "/wallet/unlock", map[string]string{"pin": "123456"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unlocked", resp["state"])
}

func TestPinValidationError(t *testing.T) {
	_, e := newTestServer(t)
	rec, _ := doJSON(t, e, http.MethodPost, "/wallet/create", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, e, http.MethodPost, "/wallet/confirm-seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, e, http.MethodPost, "/wallet/pin", map[string]string{"pin": "12ab56"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnlockInWrongState(t *testing.T) {
	_, e := newTestServer(t)
	rec, _ := doJSON(t, e, http.MethodPost, "/wallet/unlock", map[string]string{"pin": "123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPresets(t *testing.T) {
	_, e := newTestServer(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presets", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var presets []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presets))
	assert.Len(t, presets, 10)
}

func TestVaultLifecycleOverHTTP(t *testing.T) {
	_, e := newTestServer(t)
	onboardHTTP(t, e, "123456")

	unlockDate := time.Now().UTC().AddDate(0, 6, 0).Format(time.RFC3339)
	rec, created := doJSON(t, e, http.MethodPost, "/vault", map[string]any{
		"name":       "Vacanze",
		"icon":       "✈️",
		"color":      "#06b6d4",
		"currency":   "EUR",
		"unlockMode": "BOTH",
		"target":     1500.0,
		"unlockDate": unlockDate,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	vaultID, ok := created["id"].(string)
	require.True(t, ok)

	rec, tx := doJSON(t, e, http.MethodPost, fmt.Sprintf("/vault/%s/deposit", vaultID), map[string]any{"amount": 120.5})
	require.Equal(t, http.StatusOK, rec.Code)
	hash, ok := tx["txHash"].(string)
	require.True(t, ok)
	assert.Len(t, hash, 66)

	rec, got := doJSON(t, e, http.MethodGet, "/vault/"+vaultID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, got["transactions"], 1)

	rec, resp := doJSON(t, e, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary, ok := resp["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 120.5, summary["totalSaved"])

	rec, _ = doJSON(t, e, http.MethodGet, fmt.Sprintf("/vault/%s/progress", vaultID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVaultValidationReturns400(t *testing.T) {
	_, e := newTestServer(t)
	onboardHTTP(t, e, "123456")

	rec, _ := doJSON(t, e, http.MethodPost, "/vault", map[string]any{
		"name":       "Casa",
		"currency":   "EUR",
		"unlockMode": "BY_AMOUNT",
		// target missing
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, e, http.MethodGet, "/vault/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWipeRequiresConfirmation(t *testing.T) {
	_, e := newTestServer(t)
	onboardHTTP(t, e, "123456")

	req := httptest.NewRequest(http.MethodDelete, "/wallet", bytes.NewBufferString(`{"confirm":false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/wallet", bytes.NewBufferString(`{"confirm":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	recStatus, resp := doJSON(t, e, http.MethodGet, "/wallet/status", nil)
	require.Equal(t, http.StatusOK, recStatus.Code)
	assert.Equal(t, "welcome", resp["state"])
}

func TestSwapEndpointsUnconfiguredReturn503(t *testing.T) {
	_, e := newTestServer(t)
	onboardHTTP(t, e, "123456")

	rec, _ := doJSON(t, e, http.MethodPost, "/swap/quote", map[string]any{
		"fromAsset": "BTC", "toAsset": "ETH", "amount": 1.0, "vaultId": "x",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = doJSON(t, e, http.MethodGet, "/swap/order/abc", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = doJSON(t, e, http.MethodGet, "/balance/native", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
