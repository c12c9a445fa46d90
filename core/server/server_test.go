package server_test

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"leobook/core/schema"
	"leobook/core/server"
	"leobook/core/store"
	syncengine "leobook/core/sync"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStatusApp(t *testing.T) (*fiber.App, *syncengine.Watermarks) {
	t.Helper()
	st, err := store.Open(store.Config{Dir: t.TempDir(), LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	marks, err := syncengine.LoadWatermarks(filepath.Join(t.TempDir(), "wm.json"))
	require.NoError(t, err)

	orch := syncengine.New(syncengine.Config{}, st, nil, schema.NewRegistry(), marks, zap.NewNop())
	app := server.New(server.Config{Port: "0", ApiKey: "secret"}, orch, marks, zap.NewNop())
	return app, marks
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	app, _ := newStatusApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Ray-ID"))
}

func TestStatusRequiresApiKey(t *testing.T) {
	app, _ := newStatusApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestStatusReportsEngineState(t *testing.T) {
	app, _ := newStatusApp(t)

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var status syncengine.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, syncengine.StateIdle, status.State)
	assert.Nil(t, status.MergedAt)
}

func TestWatermarksEndpoint(t *testing.T) {
	app, marks := newStatusApp(t)
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	marks.Advance("predictions", "F1", ts)

	req := httptest.NewRequest("GET", "/watermarks/predictions", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Table      string               `json:"table"`
		Count      int                  `json:"count"`
		Watermarks map[string]time.Time `json:"watermarks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "predictions", body.Table)
	assert.Equal(t, 1, body.Count)
	assert.True(t, body.Watermarks["F1"].Equal(ts))
}

func TestEmptyApiKeyLocksStatusSurface(t *testing.T) {
	st, err := store.Open(store.Config{Dir: t.TempDir(), LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	marks, err := syncengine.LoadWatermarks(filepath.Join(t.TempDir(), "wm.json"))
	require.NoError(t, err)
	orch := syncengine.New(syncengine.Config{}, st, nil, schema.NewRegistry(), marks, zap.NewNop())
	app := server.New(server.Config{}, orch, marks, zap.NewNop())

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("X-API-Key", "")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
