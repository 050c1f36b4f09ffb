// Package handlers provides the HTTP handlers for the widget page, its JSON
// API and the operational /-/ endpoints.
package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

// BuildInfo describes the running binary. Version, Commit and BuildTime
// are set through ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo fills in the Go version of the running binary.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// HealthHandlerConfig wires the operational endpoints.
type HealthHandlerConfig struct {
	// Registry runs the readiness checks. Nil reports ready with no checks.
	Registry ports.HealthRegistry

	Build BuildInfo

	// Gatherer backs /-/metrics. Nil serves the global registry.
	Gatherer prometheus.Gatherer

	// Sessions reports live widget sessions in the readiness body.
	Sessions func() int
}

// HealthHandler serves /-/live, /-/ready, /-/build and /-/metrics.
type HealthHandler struct {
	registry ports.HealthRegistry
	build    BuildInfo
	metrics  http.Handler
	sessions func() int
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &HealthHandler{
		registry: cfg.Registry,
		build:    cfg.Build,
		metrics:  promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		sessions: cfg.Sessions,
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

// Liveness answers 200 while the process runs. It checks nothing.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

type readinessResponse struct {
	Status   string                        `json:"status"`
	Checks   map[string]*ports.CheckResult `json:"checks,omitempty"`
	Sessions *int                          `json:"sessions,omitempty"`
}

// Readiness answers 200 when every check passes and 503 otherwise.
func (h *HealthHandler) Readiness(c *gin.Context) {
	resp := readinessResponse{Status: string(ports.HealthStatusHealthy)}

	if h.registry != nil {
		result := h.registry.CheckAll(c.Request.Context())
		resp.Status = string(result.Status)
		resp.Checks = result.Checks
	}

	if h.sessions != nil {
		n := h.sessions()
		resp.Sessions = &n
	}

	status := http.StatusOK
	if resp.Status == string(ports.HealthStatusUnhealthy) {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

// BuildInfoHandler answers with the build metadata.
func (h *HealthHandler) BuildInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// Metrics serves the Prometheus exposition format.
func (h *HealthHandler) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// RegisterHealthRoutes mounts the operational endpoints on rg, which the
// router creates at /-.
func (h *HealthHandler) RegisterHealthRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Liveness)
	rg.GET("/ready", h.Readiness)
	rg.GET("/build", h.BuildInfoHandler)
	rg.GET("/metrics", h.Metrics)
}
