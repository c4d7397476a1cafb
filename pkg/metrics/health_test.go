package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthStates(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		want       string
	}{
		{"nothing registered", nil, StatusHealthy},
		{"all healthy", map[string]bool{"store": true, "cluster": true}, StatusHealthy},
		{"non-critical failing", map[string]bool{"store": true, "cluster": false}, StatusDegraded},
		{"critical failing", map[string]bool{"store": false, "cluster": false}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("store")
			for name, healthy := range tt.components {
				h.Update(name, healthy, "probe failed")
			}
			assert.Equal(t, tt.want, h.Health().Status)
		})
	}
}

func TestHealthComponentMessages(t *testing.T) {
	h := NewHealthChecker("store")
	h.SetVersion("1.2.0")
	h.Update("cluster", false, "no leader detected")
	h.Update("store", true, "")

	health := h.Health()
	assert.Equal(t, "unhealthy: no leader detected", health.Components["cluster"])
	assert.Equal(t, StatusHealthy, health.Components["store"])
	assert.Equal(t, "1.2.0", health.Version)
	assert.NotEmpty(t, health.Uptime)
}

func TestReadiness(t *testing.T) {
	h := NewHealthChecker("store", "scheduler")

	r := h.Readiness()
	assert.Equal(t, StatusNotReady, r.Status)
	assert.Equal(t, "not registered", r.Components["store"])

	h.Update("store", true, "")
	h.Update("scheduler", false, "starting")
	r = h.Readiness()
	assert.Equal(t, StatusNotReady, r.Status)
	assert.Equal(t, "waiting for scheduler", r.Message)

	h.Update("scheduler", true, "")
	h.Update("cluster", false, "no leader detected")
	assert.Equal(t, StatusReady, h.Readiness().Status, "non-critical components do not gate readiness")
}

func TestHandlers(t *testing.T) {
	h := NewHealthChecker("store")
	h.Update("cluster", false, "no leader detected")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    int
		status  string
	}{
		{"degraded health answers 200", h.HealthHandler(), http.StatusOK, StatusDegraded},
		{"not ready answers 503", h.ReadyHandler(), http.StatusServiceUnavailable, StatusNotReady},
		{"liveness", h.LivenessHandler(), http.StatusOK, "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}

	h.Update("store", false, "database closed")
	rec := httptest.NewRecorder()
	h.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMuxRoutes(t *testing.T) {
	mux := Mux()
	for _, path := range []string{"/metrics", "/health", "/ready", "/live"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEqual(t, http.StatusNotFound, rec.Code, path)
	}
}
