//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/clients"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/clients/acl"
	apphttp "github.com/jsamuelsen/hitokoto-widget/internal/adapters/http"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/handlers"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/views"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/store/memory"
	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/config"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

const categoryParam = "c"

// upstreamRule decides how the fake quote service answers one category.
type upstreamRule struct {
	text   string
	from   string
	status int    // non-zero answers with this status and no quote
	body   string // sent verbatim instead of a quote
	drop   bool   // hijack and close the connection
	hold   bool   // wait until released or the caller gives up
}

// upstream is a fake hitokoto API. Rules are keyed by category code; the
// "*" rule answers everything else.
type upstream struct {
	server *httptest.Server

	mu       sync.Mutex
	rules    map[string]upstreamRule
	requests []url.Values

	release     chan struct{}
	releaseOnce sync.Once
}

func newUpstream() *upstream {
	u := &upstream{
		rules:   map[string]upstreamRule{"*": {text: "default", from: "origin"}},
		release: make(chan struct{}),
	}
	u.server = httptest.NewServer(http.HandlerFunc(u.serve))

	return u
}

func (u *upstream) set(category string, rule upstreamRule) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rules[category] = rule
}

func (u *upstream) queries() []url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()

	return append([]url.Values(nil), u.requests...)
}

func (u *upstream) releaseHeld() {
	u.releaseOnce.Do(func() { close(u.release) })
}

func (u *upstream) close() {
	u.releaseHeld()
	u.server.Close()
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	category := query.Get(categoryParam)

	u.mu.Lock()
	u.requests = append(u.requests, query)
	rule, ok := u.rules[category]
	if !ok {
		rule = u.rules["*"]
	}
	u.mu.Unlock()

	switch {
	case rule.drop:
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
		return
	case rule.hold:
		select {
		case <-u.release:
		case <-r.Context().Done():
			return
		}
	case rule.status != 0:
		w.WriteHeader(rule.status)
		return
	case rule.body != "":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, rule.body)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         1,
		"uuid":       "5b6b1e1c-0c1e-4b8a-9a3d-000000000001",
		"hitokoto":   rule.text,
		"type":       category,
		"from":       rule.from,
		"from_who":   nil,
		"creator":    "integration",
		"created_at": "1700000000",
		"length":     len([]rune(rule.text)),
	})
}

// liveServer is the real HTTP server bound to a loopback port.
type liveServer struct {
	URL string
	srv *apphttp.Server
}

func (l *liveServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = l.srv.Shutdown(ctx)
}

// harness runs the whole widget server in process against the fake upstream.
type harness struct {
	upstream *upstream
	server   *liveServer
	widgets  *app.WidgetService
}

func newHarness() (*harness, error) {
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	up := newUpstream()

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     up.server.URL,
		ServiceName: "hitokoto",
		Timeout:     5 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		up.close()
		return nil, fmt.Errorf("creating client: %w", err)
	}

	hitokoto := acl.NewHitokotoClient(acl.HitokotoClientConfig{
		Client:        httpClient,
		CategoryParam: categoryParam,
		Logger:        logger,
	})

	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(hitokoto); err != nil {
		up.close()
		return nil, err
	}

	store := memory.New(memory.Config[*app.Widget]{
		TTL:     time.Hour,
		OnEvict: app.EvictWidget,
		Logger:  logger,
	})

	widgets := app.NewWidgetService(app.WidgetServiceConfig{
		Fetcher: app.NewQuoteService(app.QuoteServiceConfig{
			QuoteClient: hitokoto,
			Logger:      logger,
		}),
		Store:        store,
		FetchTimeout: 5 * time.Second,
		Logger:       logger,
	})

	widgetHandler := handlers.NewWidgetHandler(handlers.WidgetHandlerConfig{
		Widgets: widgets,
		Cookie:  handlers.SessionCookie{TTL: time.Hour},
		Footer:  views.Footer{Project: "Hitokoto App", Version: "1.0.0", Author: "Unknown"},
	})
	healthHandler := handlers.NewHealthHandler(handlers.HealthHandlerConfig{
		Registry: healthRegistry,
		Build:    handlers.NewBuildInfo("test", "none", "now"),
		Sessions: widgets.Sessions,
	})

	srv := apphttp.New(&config.ServerConfig{
		Host:           "127.0.0.1",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: config.DefaultMaxRequestSize,
	}, logger)

	routerCfg := apphttp.NewDefaultRouterConfig(logger,
		&config.AppConfig{Name: "hitokoto-widget", Version: "test", Environment: "test"},
		healthHandler, widgetHandler)
	if err := apphttp.SetupRouter(srv.Engine(), routerCfg); err != nil {
		up.close()
		return nil, fmt.Errorf("setting up router: %w", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		up.close()
		return nil, fmt.Errorf("binding listener: %w", err)
	}
	srv.StartOn(ln)

	return &harness{
		upstream: up,
		server:   &liveServer{URL: "http://" + ln.Addr().String(), srv: srv},
		widgets:  widgets,
	}, nil
}

func (h *harness) close() {
	h.server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.widgets.Close(ctx)

	h.upstream.close()
}
