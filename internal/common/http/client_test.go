package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, opts Options) *Fetcher {
	t.Helper()
	f, err := NewFetcher(opts)
	require.NoError(t, err)
	f.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return f
}

func TestFetcher_Get_SendsBrowserUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{})
	resp, err := f.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "<html>ok</html>", resp.Text())
	assert.NoError(t, resp.Err())
}

func TestFetcher_Get_RetriesRateLimitLinearly(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("done"))
	}))
	defer server.Close()

	var delays []time.Duration
	f := newTestFetcher(t, Options{MaxRetries: 2, RetryDelay: 100 * time.Millisecond})
	f.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	resp, err := f.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestFetcher_Get_ReturnsLastForbiddenAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{MaxRetries: 2})
	resp, err := f.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, resp.OK())

	var statusErr *StatusError
	require.ErrorAs(t, resp.Err(), &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Contains(t, resp.Err().Error(), "403")
}

func TestFetcher_Get_DoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{MaxRetries: 2})
	resp, err := f.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetcher_Get_CapsBodySize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 4096)))
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{MaxBytes: 1024})
	resp, err := f.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Len(t, resp.Body, 1024)
}

func TestFetcher_Get_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{Timeout: 20 * time.Millisecond})
	_, err := f.Get(context.Background(), server.URL, nil)

	assert.Error(t, err)
}

func TestFetcher_ScraperAPIWrapsTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "https://hotel.example/contact", r.URL.Query().Get("url"))
		w.Write([]byte("proxied"))
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{Proxy: ProxyConfig{
		Mode:          ProxyScraperAPI,
		ScraperAPIKey: "secret",
		ScraperAPIURL: server.URL + "/",
	}})

	resp, err := f.Get(context.Background(), "https://hotel.example/contact", nil)

	require.NoError(t, err)
	assert.Equal(t, "proxied", resp.Text())
	assert.Equal(t, "https://hotel.example/contact", resp.URL)
}

func TestFetcher_CustomProxyRotation(t *testing.T) {
	var hitsA, hitsB atomic.Int32
	proxyA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsA.Add(1)
		w.Write([]byte("a"))
	}))
	defer proxyA.Close()
	proxyB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsB.Add(1)
		w.Write([]byte("b"))
	}))
	defer proxyB.Close()

	f := newTestFetcher(t, Options{Proxy: ProxyConfig{
		Mode:          ProxyCustom,
		CustomProxies: []string{proxyA.URL, proxyB.URL},
	}})

	for i := 0; i < 4; i++ {
		resp, err := f.Get(context.Background(), "http://hotel.example/", nil)
		require.NoError(t, err)
		assert.True(t, resp.OK())
	}

	assert.Equal(t, int32(2), hitsA.Load())
	assert.Equal(t, int32(2), hitsB.Load())
}

func TestFetcher_Post_SendsBodyAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":"x"}`, string(body))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := newTestFetcher(t, Options{})
	resp, err := f.Post(context.Background(), server.URL, []byte(`{"q":"x"}`), map[string]string{
		"Content-Type": "application/json",
	})
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, resp.JSON(&out))
	assert.True(t, out.OK)
}

func TestNewFetcher_InvalidProxyConfig(t *testing.T) {
	tests := []struct {
		name  string
		proxy ProxyConfig
	}{
		{"scraperapi without key", ProxyConfig{Mode: ProxyScraperAPI}},
		{"custom without proxies", ProxyConfig{Mode: ProxyCustom}},
		{"custom with bad url", ProxyConfig{Mode: ProxyCustom, CustomProxies: []string{"::nope"}}},
		{"unknown mode", ProxyConfig{Mode: "tor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetcher(Options{Proxy: tt.proxy})
			assert.Error(t, err)
		})
	}
}
