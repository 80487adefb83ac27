package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := securityHeadersMiddleware(nil)(okHandler())

	t.Run("plain http", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics", nil))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
		assert.Contains(t, rec.Header().Get("Permissions-Policy"), "camera=()")
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("https adds hsts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "https://forum.example.ts.net/topics", nil))

		assert.Equal(t, "max-age=63072000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
	})
}

func TestBuildCSPIsStable(t *testing.T) {
	directives := map[string]string{"b": "2", "a": "1", "upgrade-insecure-requests": ""}
	assert.Equal(t, "a 1; b 2; upgrade-insecure-requests", buildCSP(directives))
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := requestSizeLimitMiddleware(16)(readAll)

	tests := []struct {
		name   string
		method string
		body   string
		chunk  bool
		want   int
	}{
		{name: "small post", method: http.MethodPost, body: "title=hi", want: http.StatusOK},
		{name: "declared too large", method: http.MethodPost, body: strings.Repeat("x", 32), want: http.StatusRequestEntityTooLarge},
		{name: "streamed too large", method: http.MethodPost, body: strings.Repeat("x", 32), chunk: true, want: http.StatusRequestEntityTooLarge},
		{name: "delete is limited too", method: http.MethodDelete, body: strings.Repeat("x", 32), want: http.StatusRequestEntityTooLarge},
		{name: "get is not limited", method: http.MethodGet, body: strings.Repeat("x", 32), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/topics", bytes.NewBufferString(tt.body))
			if tt.chunk {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCSRFProtectionMiddleware(t *testing.T) {
	config := defaultSecurityConfig()
	config.CSRFTrustedOrigins = []string{"https://trusted.example.com", "::not a url::"}
	handler := csrfProtectionMiddleware(config, NewTestLogger())(okHandler())

	tests := []struct {
		name   string
		method string
		origin string
		want   int
	}{
		{name: "safe method from anywhere", method: http.MethodGet, origin: "https://evil.com", want: http.StatusOK},
		{name: "post without origin", method: http.MethodPost, want: http.StatusOK},
		{name: "cross-origin post", method: http.MethodPost, origin: "https://evil.com", want: http.StatusForbidden},
		{name: "cross-origin delete", method: http.MethodDelete, origin: "https://evil.com", want: http.StatusForbidden},
		{name: "trusted origin", method: http.MethodPost, origin: "https://trusted.example.com", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/topics/1/favorite", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPAllowlistMiddleware(t *testing.T) {
	handler := ipAllowlistMiddleware([]string{"127.0.0.1", "::1"})(okHandler())

	for addr, want := range map[string]int{
		"127.0.0.1:5000":  http.StatusOK,
		"[::1]:5000":      http.StatusOK,
		"100.64.0.7:5000": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/_/metrics", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, addr)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}

	base := NewChain(mark("m1"))
	extended := base.Append(mark("m2"))

	rec := httptest.NewRecorder()
	extended.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}, order)

	order = nil
	base.Then(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"m1-before", "m1-after"}, order, "Append must not modify the original chain")
}

func TestRequestContextMiddleware(t *testing.T) {
	var seen string
	handler := requestContextMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getRequestID(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps a valid incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "6f1c1d7e-3c1a-4f4e-9a51-0d2f6f0b6a11")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "6f1c1d7e-3c1a-4f4e-9a51-0d2f6f0b6a11", seen)
	})

	t.Run("replaces a garbage id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "<script>")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, "<script>", seen)
	})
}

func TestHashEmail(t *testing.T) {
	assert.Equal(t, "", HashEmail(""))

	h := HashEmail("user@example.com")
	assert.Len(t, h, 16)
	assert.Equal(t, h, HashEmail("user@example.com"))
	assert.NotEqual(t, h, HashEmail("other@example.com"))
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/topics", "/topics", true},
		{"/topics/12/replies", "/topics/*/replies", true},
		{"/topics/12/replies/3", "/topics/*/replies", false},
		{"/topics/12", "/topics/*/replies", false},
		{"/admin/", "/admin", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.path, tt.pattern), "%s ~ %s", tt.path, tt.pattern)
	}
}

func BenchmarkSecurityHeadersMiddleware(b *testing.B) {
	handler := securityHeadersMiddleware(nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
