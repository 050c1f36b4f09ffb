package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/dto"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/middleware"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/views"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/store/memory"
	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// fakeFetcher answers fetches with a fixed result and records the
// requested categories. A blocking fetcher holds every fetch until its
// context ends.
type fakeFetcher struct {
	mu         sync.Mutex
	categories []domain.Category
	quote      *domain.Quote
	err        error
	block      bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, category domain.Category) (*domain.Quote, error) {
	f.mu.Lock()
	f.categories = append(f.categories, category)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if f.err != nil {
		return nil, f.err
	}

	q := *f.quote
	q.Category = category

	return &q, nil
}

func (f *fakeFetcher) calls() []domain.Category {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]domain.Category(nil), f.categories...)
}

type testServer struct {
	engine  *gin.Engine
	widgets *app.WidgetService
	fetcher *fakeFetcher
}

func newTestServer(t *testing.T, fetcher *fakeFetcher, prefersDark bool) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New(memory.Config[*app.Widget]{
		TTL:     time.Hour,
		OnEvict: app.EvictWidget,
		Logger:  logger,
	})

	widgets := app.NewWidgetService(app.WidgetServiceConfig{
		Fetcher:      fetcher,
		Store:        store,
		FetchTimeout: time.Second,
		Logger:       logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = widgets.Close(ctx)
	})

	handler := NewWidgetHandler(WidgetHandlerConfig{
		Widgets:     widgets,
		Cookie:      SessionCookie{TTL: time.Hour},
		Footer:      views.Footer{Project: "Hitokoto App", Version: "1.0.0", Author: "Unknown"},
		PrefersDark: prefersDark,
	})

	tmpl, err := views.Templates()
	require.NoError(t, err)

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.Use(middleware.ClientHints())
	handler.RegisterRoutes(engine.Group("/"))
	handler.RegisterAPIRoutes(engine.Group("/api/v1"))

	return &testServer{engine: engine, widgets: widgets, fetcher: fetcher}
}

func quoteFetcher() *fakeFetcher {
	return &fakeFetcher{quote: &domain.Quote{ID: 1, Text: "x", From: "y"}}
}

type request struct {
	method      string
	path        string
	body        string
	contentType string
	session     string
	headers     map[string]string
}

func (s *testServer) do(r request) *httptest.ResponseRecorder {
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.session != "" {
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: r.session})
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	return w
}

// open starts a session and waits for its first fetch to settle.
func (s *testServer) open(t *testing.T) string {
	t.Helper()

	w := s.do(request{method: http.MethodGet, path: "/"})
	require.Equal(t, http.StatusOK, w.Code)

	id := sessionFrom(t, w).Value
	s.wait(t, id)

	return id
}

func (s *testServer) wait(t *testing.T, id string) app.Snapshot {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, err := s.widgets.Wait(ctx, id)
	require.NoError(t, err)

	return snap
}

func sessionFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == DefaultSessionCookie {
			return c
		}
	}

	t.Fatal("no session cookie set")

	return nil
}

func TestNewWidgetHandler_RequiresService(t *testing.T) {
	assert.Panics(t, func() { NewWidgetHandler(WidgetHandlerConfig{}) })
}

func TestPage_NewSessionIsLoading(t *testing.T) {
	srv := newTestServer(t, &fakeFetcher{block: true}, false)

	w := srv.do(request{method: http.MethodGet, path: "/"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "加载中...")
	assert.Contains(t, w.Body.String(), `<meta http-equiv="refresh" content="1">`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, middleware.HeaderPrefersColorScheme, w.Header().Get("Accept-CH"))

	cookie := sessionFrom(t, w)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.Equal(t, 1, srv.widgets.Sessions())
}

func TestPage_States(t *testing.T) {
	tests := []struct {
		name     string
		fetcher  *fakeFetcher
		contains []string
		absent   []string
	}{
		{
			name:     "loaded quote with attribution",
			fetcher:  quoteFetcher(),
			contains: []string{`<p class="quote-text">"x"</p>`, "— y"},
			absent:   []string{"加载中...", "http-equiv"},
		},
		{
			name:     "failed fetch",
			fetcher:  &fakeFetcher{err: domain.NewFetchError("request", errors.New("connection refused"))},
			contains: []string{domain.FetchFailureMessage},
			absent:   []string{"加载中...", `<p class="quote-text">`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.fetcher, false)
			id := srv.open(t)

			w := srv.do(request{method: http.MethodGet, path: "/", session: id})

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, id, sessionFrom(t, w).Value, "existing session is reused")

			for _, s := range tt.contains {
				assert.Contains(t, w.Body.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, w.Body.String(), s)
			}
		})
	}
}

func TestPage_FooterRenderedVerbatim(t *testing.T) {
	srv := newTestServer(t, quoteFetcher(), false)

	w := srv.do(request{method: http.MethodGet, path: "/"})

	assert.Contains(t, w.Body.String(), "Hitokoto App")
	assert.Contains(t, w.Body.String(), "版本 1.0.0")
	assert.Contains(t, w.Body.String(), "作者 Unknown")
}

func TestPage_DarkModeSeed(t *testing.T) {
	tests := []struct {
		name        string
		hint        string
		prefersDark bool
		wantDark    bool
	}{
		{"hint dark", "dark", false, true},
		{"hint light beats config", "light", true, false},
		{"no hint uses config", "", true, true},
		{"no hint and light config", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, quoteFetcher(), tt.prefersDark)

			headers := map[string]string{}
			if tt.hint != "" {
				headers[middleware.HeaderPrefersColorScheme] = tt.hint
			}

			w := srv.do(request{method: http.MethodGet, path: "/", headers: headers})
			require.Equal(t, http.StatusOK, w.Code)

			assert.Equal(t, tt.wantDark, strings.Contains(w.Body.String(), `<body class="dark">`))

			// The preference only seeds a new session.
			id := sessionFrom(t, w).Value
			headers[middleware.HeaderPrefersColorScheme] = "dark"
			if tt.wantDark {
				headers[middleware.HeaderPrefersColorScheme] = "light"
			}

			w = srv.do(request{method: http.MethodGet, path: "/", session: id, headers: headers})
			assert.Equal(t, tt.wantDark, strings.Contains(w.Body.String(), `<body class="dark">`))
		})
	}
}

func TestApplyStyle(t *testing.T) {
	tests := []struct {
		name         string
		form         url.Values
		wantStatus   int
		wantFetch    bool
		wantCategory domain.Category
		check        func(*testing.T, domain.Style)
		wantBody     string
	}{
		{
			name:       "restyle without fetch",
			form:       url.Values{"font_family": {"font-mono"}, "text_color": {"#FFFFFF"}, "border_radius": {"4"}, "category": {""}},
			wantStatus: http.StatusSeeOther,
			check: func(t *testing.T, st domain.Style) {
				assert.Equal(t, "font-mono", st.Font.Key)
				assert.Equal(t, domain.Color("#ffffff"), st.TextColor)
				assert.Equal(t, 4, st.BorderRadius)
			},
		},
		{
			name:         "category change fetches",
			form:         url.Values{"category": {"k"}},
			wantStatus:   http.StatusSeeOther,
			wantFetch:    true,
			wantCategory: domain.CategoryPhilosophy,
			check: func(t *testing.T, st domain.Style) {
				assert.Equal(t, domain.CategoryPhilosophy, st.Category)
			},
		},
		{
			name:       "unknown font rejected",
			form:       url.Values{"font_family": {"papyrus"}, "gradient": {"none"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "font_family",
			check: func(t *testing.T, st domain.Style) {
				assert.Equal(t, domain.DefaultStyle(), st, "a rejected form changes nothing")
			},
		},
		{
			name:       "empty form rejected",
			form:       url.Values{},
			wantStatus: http.StatusBadRequest,
			wantBody:   "at least one option is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, quoteFetcher(), false)
			id := srv.open(t)

			w := srv.do(request{
				method:      http.MethodPost,
				path:        "/style",
				body:        tt.form.Encode(),
				contentType: "application/x-www-form-urlencoded",
				session:     id,
			})

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusSeeOther {
				assert.Equal(t, "/", w.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
				assert.Contains(t, w.Body.String(), `role="alert"`)
			}

			snap := srv.wait(t, id)
			if tt.check != nil {
				tt.check(t, snap.Style)
			}

			calls := srv.fetcher.calls()
			if tt.wantFetch {
				require.Len(t, calls, 2)
				assert.Equal(t, tt.wantCategory, calls[1])
			} else {
				assert.Len(t, calls, 1)
			}
		})
	}
}

func TestFormActions(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantFetch bool
		check     func(*testing.T, domain.Style)
	}{
		{
			name:      "refresh",
			path:      "/refresh",
			wantFetch: true,
			check: func(t *testing.T, st domain.Style) {
				assert.Equal(t, domain.DefaultStyle(), st)
			},
		},
		{
			name: "theme toggle",
			path: "/theme/toggle",
			check: func(t *testing.T, st domain.Style) {
				assert.True(t, st.DarkMode)
			},
		},
		{
			name: "panel toggle",
			path: "/panel/toggle",
			check: func(t *testing.T, st domain.Style) {
				assert.False(t, st.PanelOpen)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, quoteFetcher(), false)
			id := srv.open(t)

			w := srv.do(request{method: http.MethodPost, path: tt.path, session: id})

			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/", w.Header().Get("Location"))

			snap := srv.wait(t, id)
			tt.check(t, snap.Style)
			assert.NotNil(t, snap.Quote)

			want := 1
			if tt.wantFetch {
				want = 2
			}
			assert.Len(t, srv.fetcher.calls(), want)
		})
	}
}

func TestFormActions_UnknownSessionStartsNewOne(t *testing.T) {
	srv := newTestServer(t, quoteFetcher(), false)

	w := srv.do(request{method: http.MethodPost, path: "/theme/toggle", session: "expired"})

	require.Equal(t, http.StatusSeeOther, w.Code)
	id := sessionFrom(t, w).Value
	assert.NotEqual(t, "expired", id)

	snap := srv.wait(t, id)
	assert.True(t, snap.Style.DarkMode)
}

func TestFormActions_RefreshWithoutSessionFetchesOnce(t *testing.T) {
	srv := newTestServer(t, quoteFetcher(), false)

	w := srv.do(request{method: http.MethodPost, path: "/refresh"})

	require.Equal(t, http.StatusSeeOther, w.Code)
	snap := srv.wait(t, sessionFrom(t, w).Value)
	assert.NotNil(t, snap.Quote)
	assert.Len(t, srv.fetcher.calls(), 1)
}

func TestStylesheet(t *testing.T) {
	srv := newTestServer(t, quoteFetcher(), false)

	// No session: default style.
	w := srv.do(request{method: http.MethodGet, path: "/style.css"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "border-radius: 12px")
	assert.Contains(t, w.Header().Values("Vary"), "Cookie")
	assert.Equal(t, 0, srv.widgets.Sessions(), "stylesheet never creates a session")

	defaultTag := w.Header().Get("ETag")
	require.NotEmpty(t, defaultTag)

	w = srv.do(request{
		method:  http.MethodGet,
		path:    "/style.css",
		headers: map[string]string{"If-None-Match": defaultTag},
	})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	id := srv.open(t)
	srv.do(request{
		method:      http.MethodPost,
		path:        "/style",
		body:        "border_radius=20",
		contentType: "application/x-www-form-urlencoded",
		session:     id,
	})

	w = srv.do(request{
		method:  http.MethodGet,
		path:    "/style.css",
		session: id,
		headers: map[string]string{"If-None-Match": defaultTag},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "border-radius: 20px")
	assert.NotEqual(t, defaultTag, w.Header().Get("ETag"))
}

func TestSessionCookie(t *testing.T) {
	cookie := SessionCookie{Name: "sid", TTL: 30 * time.Minute, Secure: true}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, cookie.Read(c))

	cookie.Write(c, "abc")

	set := w.Result().Cookies()
	require.Len(t, set, 1)
	assert.Equal(t, "sid", set[0].Name)
	assert.Equal(t, "abc", set[0].Value)
	assert.Equal(t, "/", set[0].Path)
	assert.Equal(t, 1800, set[0].MaxAge)
	assert.True(t, set[0].Secure)

	c.Request.AddCookie(&http.Cookie{Name: "sid", Value: "abc"})
	assert.Equal(t, "abc", cookie.Read(c))
}

func TestFormError(t *testing.T) {
	assert.Equal(t, "gradient: unknown gradient",
		formError(domain.NewValidationError("gradient", "unknown gradient")))
	assert.Equal(t, "at least one option is required",
		formError(domain.NewValidationError("", "at least one option is required")))
	assert.Equal(t, "invalid settings", formError(errors.New("boom")))
}

func decodeWidget(t *testing.T, w *httptest.ResponseRecorder) dto.WidgetResponse {
	t.Helper()

	var resp dto.WidgetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}
