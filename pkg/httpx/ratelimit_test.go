package httpx_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serveFrom(h http.Handler, addr, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIPKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	req.Header.Set("X-Real-IP", "203.0.113.2")
	require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
}

func TestClientIPKeyExtractor(t *testing.T) {
	trusted, err := httpx.ParseTrustedProxies("10.0.0.0/8, 192.168.1.1")
	require.NoError(t, err)
	extract := httpx.ClientIPKeyExtractor(trusted)

	tests := map[string]struct {
		remote string
		xff    string
		xri    string
		want   string
	}{
		"untrusted peer ignores headers": {
			remote: "198.51.100.7:1", xff: "203.0.113.1", xri: "203.0.113.2", want: "198.51.100.7",
		},
		"trusted peer uses forwarded hop": {
			remote: "10.1.2.3:1", xff: "203.0.113.1", want: "203.0.113.1",
		},
		"spoofed leading hops are skipped": {
			remote: "10.1.2.3:1", xff: "1.1.1.1, 2.2.2.2, 203.0.113.1", want: "203.0.113.1",
		},
		"trusted hops are walked past": {
			remote: "10.1.2.3:1", xff: "203.0.113.1, 10.9.9.9, 192.168.1.1", want: "203.0.113.1",
		},
		"falls back to X-Real-IP": {
			remote: "192.168.1.1:1", xri: "203.0.113.2", want: "203.0.113.2",
		},
		"trusted peer without headers": {
			remote: "10.1.2.3:1", want: "10.1.2.3",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				req.Header.Set("X-Real-IP", tc.xri)
			}
			require.Equal(t, tc.want, extract(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := httpx.ParseTrustedProxies(" 10.0.0.0/8 ,,192.168.1.1, ::1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "192.168.1.1/32", got[1].String())
	require.Equal(t, "::1/128", got[2].String())

	none, err := httpx.ParseTrustedProxies("")
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = httpx.ParseTrustedProxies("10.0.0.0/99")
	require.Error(t, err)
	_, err = httpx.ParseTrustedProxies("proxy.internal")
	require.Error(t, err)
}

func TestFormFieldKeyExtractor(t *testing.T) {
	extract := httpx.FormFieldKeyExtractor("username")

	t.Run("query", func(t *testing.T) {
		require.Equal(t, "alice", extract(httptest.NewRequest(http.MethodGet, "/?username=Alice", nil)))
	})

	t.Run("form body", func(t *testing.T) {
		form := url.Values{"username": {"bob"}}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		require.Equal(t, "bob", extract(req))
	})

	t.Run("missing", func(t *testing.T) {
		require.Empty(t, extract(httptest.NewRequest(http.MethodGet, "/", nil)))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	extract := httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor, httpx.FormFieldKeyExtractor("username"))

	req := httptest.NewRequest(http.MethodGet, "/?username=alice", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1:alice", extract(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1", extract(req))
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("blocks over limit", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}, nil)(okHandler)

		for i := range 3 {
			require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:1", "/").Code, "request %d", i+1)
		}

		rec := serveFrom(h, "192.168.1.1:1", "/")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
		require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	})

	t.Run("keys tracked separately", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, nil)(okHandler)

		require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:1", "/").Code)
		require.Equal(t, http.StatusTooManyRequests, serveFrom(h, "192.168.1.1:1", "/").Code)
		require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.2:1", "/").Code)
	})

	t.Run("empty key bypasses", func(t *testing.T) {
		empty := func(*http.Request) string { return "" }
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, empty)(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:1", "/").Code)
		}
	})

	t.Run("ip and username", func(t *testing.T) {
		h := httpx.RateLimitByIPAndFormField(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}, nil, "username")(okHandler)

		for range 2 {
			require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:1", "/?username=alice").Code)
		}
		require.Equal(t, http.StatusTooManyRequests, serveFrom(h, "192.168.1.1:1", "/?username=alice").Code)
		require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:1", "/?username=bob").Code)
	})

	t.Run("forged forwarding headers share one bucket", func(t *testing.T) {
		h := httpx.RateLimitByIPAndFormField(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2},
			httpx.DefaultRateLimits().ClientIP(), "username")(okHandler)

		codes := make([]int, 0, 3)
		for i := range 3 {
			req := httptest.NewRequest(http.MethodGet, "/?username=alice", nil)
			req.RemoteAddr = "198.51.100.7:1"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})
}

func TestRateLimitProfiles(t *testing.T) {
	d := httpx.DefaultRateLimits()
	for name, cfg := range map[string]httpx.RateLimitConfig{
		"strict": d.Strict, "moderate": d.Moderate, "lenient": d.Lenient, "public": d.Public,
	} {
		require.True(t, cfg.Valid(), name)
	}

	require.Less(t, d.Strict.RequestsPerWindow, d.Moderate.RequestsPerWindow)
	require.Less(t, d.Moderate.RequestsPerWindow, d.Lenient.RequestsPerWindow)
	require.Less(t, d.Lenient.RequestsPerWindow, d.Public.RequestsPerWindow)
}

func TestRateLimitsFromEnv(t *testing.T) {
	env := map[string]string{
		"RATELIMIT_STRICT_REQUESTS":   "50",
		"RATELIMIT_STRICT_WINDOW_SEC": "10",
		"RATELIMIT_STRICT_BURST":      "-1",
		"RATELIMIT_PUBLIC_BURST":      "junk",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	def := httpx.DefaultRateLimits()
	got := httpx.RateLimitsFromEnv(lookup, def)

	require.Equal(t, 50, got.Strict.RequestsPerWindow)
	require.Equal(t, 10*time.Second, got.Strict.Window)
	require.Equal(t, def.Strict.Burst, got.Strict.Burst)
	require.Equal(t, def.Public, got.Public)
	require.Equal(t, def.Moderate, got.Moderate)
}

func BenchmarkRateLimitMiddleware(b *testing.B) {
	h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1_000_000, Window: time.Minute, Burst: 1000}, nil)(okHandler)

	b.ResetTimer()
	for range b.N {
		serveFrom(h, "192.168.1.1:1", "/")
	}
}
