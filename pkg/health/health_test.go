package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestReadyGate(t *testing.T) {
	s := New()

	rec := httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)
	assert.Equal(t, "unhealthy", decodeBody(t, rec).Status)

	s.SetReady(true)
	rec = httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec).Status)
}

func TestFailingCheckReportsDetail(t *testing.T) {
	s := New()
	s.SetReady(true)
	s.AddCheck("postgres", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["postgres"])
}

func TestHealthEndpointListsPassingChecks(t *testing.T) {
	s := New()
	s.SetReady(true)
	s.AddCheck("postgres", time.Second, func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	s.HealthEndpoint(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, 200, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
}

func TestCheckTimeout(t *testing.T) {
	s := New()
	s.SetReady(true)
	s.AddCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	rec := httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)
}

func TestLiveEndpointAlwaysOK(t *testing.T) {
	s := New()
	rec := httptest.NewRecorder()
	s.LiveEndpoint(rec, httptest.NewRequest("GET", "/livez", nil))
	assert.Equal(t, 200, rec.Code)
}
