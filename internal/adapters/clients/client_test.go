package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/middleware"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/config"
)

func defaultConfig() *Config {
	return &Config{
		ServiceName: "hitokoto",
		Timeout:     5 * time.Second,
		Transport: config.TransportConfig{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
		UserAgent: "hitokoto-widget/test",
	}
}

// closeBody is a test helper that closes the response body and fails the test on error.
func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")
}

func TestNew_RequiresServiceName(t *testing.T) {
	cfg := defaultConfig()
	cfg.ServiceName = ""

	_, err := New(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "service name is required")
}

func TestNew_Success(t *testing.T) {
	cfg := defaultConfig()
	cfg.BaseURL = "https://v1.hitokoto.cn"

	client, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://v1.hitokoto.cn", client.base.String())
	assert.Equal(t, "hitokoto", client.ServiceName())
	assert.Equal(t, 5*time.Second, client.http.Timeout)
}

func TestNew_TransportDefaults(t *testing.T) {
	cfg := defaultConfig()
	cfg.Timeout = 0
	cfg.Transport = config.TransportConfig{}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, client.http.Timeout)

	assert.Equal(t, config.DefaultTransportMaxIdleConns, client.pool.MaxIdleConns)
	assert.Equal(t, config.DefaultTransportMaxIdleConnsPerHost, client.pool.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, client.pool.IdleConnTimeout)
}

func TestNew_TransportOverrides(t *testing.T) {
	client, err := New(defaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 10, client.pool.MaxIdleConns)
	assert.Equal(t, 2, client.pool.MaxIdleConnsPerHost)
	assert.Equal(t, 30*time.Second, client.pool.IdleConnTimeout)
}

func TestClient_HeaderPropagation(t *testing.T) {
	var received http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.BaseURL = server.URL

	client, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	ctx = middleware.ContextWithRequestID(ctx, "test-request-123")
	ctx = middleware.ContextWithCorrelationID(ctx, "test-correlation-456")

	resp, err := client.Get(ctx, "/", nil)
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, "test-request-123", received.Get(middleware.HeaderRequestID))
	assert.Equal(t, "test-correlation-456", received.Get(middleware.HeaderCorrelationID))
	assert.Equal(t, "hitokoto-widget/test", received.Get("User-Agent"))
	assert.Equal(t, "application/json", received.Get("Accept"))
}

func TestClient_GetEncodesQuery(t *testing.T) {
	var rawQuery, path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.BaseURL = server.URL

	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "", url.Values{"c": {"k"}})
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, "/", path)
	assert.Equal(t, "c=k", rawQuery)
}

func TestClient_SingleAttemptOnServerError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.BaseURL = server.URL

	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/", nil)
	require.NoError(t, err, "status codes are the caller's concern")
	defer closeBody(t, resp)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.BaseURL = server.URL
	cfg.Timeout = 50 * time.Millisecond

	client, err := New(cfg)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestClient_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := defaultConfig()
	cfg.BaseURL = server.URL

	client, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = client.Get(ctx, "/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	cfg := defaultConfig()
	cfg.BaseURL = target

	client, err := New(cfg)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/", nil)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestClient_BuildURL(t *testing.T) {
	tests := []struct {
		base  string
		path  string
		query url.Values
		want  string
	}{
		{"https://v1.hitokoto.cn", "", nil, "https://v1.hitokoto.cn/"},
		{"https://v1.hitokoto.cn", "/nm/summary", nil, "https://v1.hitokoto.cn/nm/summary"},
		{"https://v1.hitokoto.cn", "nm/summary", nil, "https://v1.hitokoto.cn/nm/summary"},
		{"https://v1.hitokoto.cn/", "", nil, "https://v1.hitokoto.cn/"},
		{"https://example.com/api/", "/quote", url.Values{"c": {"a"}}, "https://example.com/api/quote?c=a"},
	}

	for _, tt := range tests {
		t.Run(tt.base+tt.path, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.BaseURL = tt.base

			client, err := New(cfg)
			require.NoError(t, err)

			assert.Equal(t, tt.want, client.buildURL(tt.path, tt.query))
		})
	}
}

func TestClient_PropagatesTraceContext(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})

	var traceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := defaultConfig()
	cfg.BaseURL = server.URL

	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, traceparent)
}
