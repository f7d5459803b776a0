package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkFunc func(context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type activeJobs int

func (a activeJobs) ActiveCount() int { return int(a) }

type browserLock struct {
	locked  bool
	waiting int
}

func (b browserLock) State() (bool, int) { return b.locked, b.waiting }

func get(t *testing.T, h *HealthHandler) (int, OverallHealth) {
	t.Helper()
	app := fiber.New()
	app.Get("/v1/health", h.HandleHealth)
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out OverallHealth
	require.NoError(t, json.Unmarshal(b, &out))
	return resp.StatusCode, out
}

func TestHealth_StartingUntilReady(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	h := NewHealthHandler(map[string]Checker{"redis": ok}, activeJobs(2), browserLock{locked: true, waiting: 1})

	code, body := get(t, h)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", body.OverallStatus)

	h.SetReady()
	code, body = get(t, h)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", body.OverallStatus)
	assert.Equal(t, "ok", body.Components["redis"].Status)
	assert.Equal(t, 2, body.Runtime.ActiveResearchJobs)
	assert.True(t, body.Runtime.BrowserLocked)
	assert.Equal(t, 1, body.Runtime.BrowserWaiting)
}

func TestHealth_ComponentFailure(t *testing.T) {
	bad := checkFunc(func(context.Context) error { return errors.New("connection refused") })
	h := NewHealthHandler(map[string]Checker{"redis": bad}, nil, nil)
	h.SetReady()

	code, body := get(t, h)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "error", body.OverallStatus)
	assert.Equal(t, "connection refused", body.Components["redis"].Error)
	assert.Zero(t, body.Runtime.ActiveResearchJobs)
}
