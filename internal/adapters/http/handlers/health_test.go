package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/hitokoto-widget/internal/mocks"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ptr[T any](v T) *T { return &v }

// serveHealth mounts h the way the router does and performs one GET.
func serveHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	engine := gin.New()
	h.RegisterHealthRoutes(engine.Group("/-"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	return w
}

func TestNewBuildInfo(t *testing.T) {
	bi := NewBuildInfo("1.0.0", "abc123", "2024-01-15T10:00:00Z")

	assert.Equal(t, BuildInfo{
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildTime: "2024-01-15T10:00:00Z",
		GoVersion: runtime.Version(),
	}, bi)
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := serveHealth(NewHealthHandler(HealthHandlerConfig{Registry: mocks.NewMockHealthRegistry(t)}), "/-/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name         string
		result       *ports.HealthResult
		sessions     func() int
		wantStatus   int
		wantSessions *int
	}{
		{
			name: "quote service up",
			result: &ports.HealthResult{
				Status: ports.HealthStatusHealthy,
				Checks: map[string]*ports.CheckResult{"hitokoto": {Status: ports.HealthStatusHealthy}},
			},
			sessions:     func() int { return 3 },
			wantStatus:   http.StatusOK,
			wantSessions: ptr(3),
		},
		{
			name: "quote service down",
			result: &ports.HealthResult{
				Status: ports.HealthStatusUnhealthy,
				Checks: map[string]*ports.CheckResult{
					"hitokoto": {Status: ports.HealthStatusUnhealthy, Message: "status 503"},
				},
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:         "nothing registered",
			result:       &ports.HealthResult{Status: ports.HealthStatusHealthy},
			sessions:     func() int { return 0 },
			wantStatus:   http.StatusOK,
			wantSessions: ptr(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := mocks.NewMockHealthRegistry(t)
			registry.EXPECT().CheckAll(mock.Anything).Return(tt.result)

			w := serveHealth(NewHealthHandler(HealthHandlerConfig{
				Registry: registry,
				Sessions: tt.sessions,
			}), "/-/ready")

			assert.Equal(t, tt.wantStatus, w.Code)

			var body readinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(tt.result.Status), body.Status)
			assert.Equal(t, tt.wantSessions, body.Sessions)

			for name, check := range tt.result.Checks {
				require.Contains(t, body.Checks, name)
				assert.Equal(t, check.Message, body.Checks[name].Message)
			}
		})
	}
}

func TestHealthHandler_Readiness_NoRegistry(t *testing.T) {
	w := serveHealth(NewHealthHandler(HealthHandlerConfig{}), "/-/ready")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestHealthHandler_BuildInfo(t *testing.T) {
	build := BuildInfo{Version: "1.2.3", Commit: "def456", BuildTime: "2024-02-01T12:00:00Z", GoVersion: "go1.25.0"}

	w := serveHealth(NewHealthHandler(HealthHandlerConfig{Build: build}), "/-/build")

	assert.Equal(t, http.StatusOK, w.Code)

	var got BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, build, got)
}

func TestHealthHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "hitokoto_test_total",
		Help: "Test counter.",
	}).Inc()

	w := serveHealth(NewHealthHandler(HealthHandlerConfig{Gatherer: reg}), "/-/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "hitokoto_test_total 1")
}
