package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
)

// SecurityConfig holds security middleware configuration
type SecurityConfig struct {
	CSPDirectives map[string]string

	HSTSMaxAge            int
	HSTSIncludeSubDomains bool

	// CrossOriginProtection guards state-changing requests.
	CSRFProtection     *http.CrossOriginProtection
	CSRFTrustedOrigins []string

	PermissionsPolicy map[string][]string

	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string

	MaxBodyBytes int64
}

func defaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSPDirectives: map[string]string{
			"default-src":     "'none'",
			"img-src":         "'self' data:",
			"style-src":       "'self'",
			"frame-ancestors": "'none'",
			"base-uri":        "'none'",
			"form-action":     "'self'",
		},
		HSTSMaxAge:            63072000,
		HSTSIncludeSubDomains: true,
		CSRFProtection:        http.NewCrossOriginProtection(),
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy: map[string][]string{
			"camera":      {},
			"geolocation": {},
			"microphone":  {},
			"payment":     {},
		},
		MaxBodyBytes: 1 << 20,
	}
}

func securityHeadersMiddleware(config *SecurityConfig) Middleware {
	if config == nil {
		config = defaultSecurityConfig()
	}

	permissionsPolicy := buildPermissionsPolicy(config.PermissionsPolicy)
	csp := buildCSP(config.CSPDirectives)
	hsts := buildHSTS(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", config.ContentTypeOptions)
			h.Set("X-Frame-Options", config.FrameOptions)
			h.Set("Referrer-Policy", config.ReferrerPolicy)
			h.Set("Content-Security-Policy", csp)
			if permissionsPolicy != "" {
				h.Set("Permissions-Policy", permissionsPolicy)
			}
			if isHTTPS(r) {
				h.Set("Strict-Transport-Security", hsts)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// csrfProtectionMiddleware rejects cross-origin state-changing requests
// using http.CrossOriginProtection.
func csrfProtectionMiddleware(config *SecurityConfig, logger *slog.Logger) Middleware {
	if config == nil {
		config = defaultSecurityConfig()
	}

	protection := config.CSRFProtection
	if protection == nil {
		protection = http.NewCrossOriginProtection()
	}

	for _, origin := range config.CSRFTrustedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			logger.Warn("ignoring invalid trusted origin",
				slog.String("origin", origin),
				slog.String("error", err.Error()))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := protection.Check(r); err != nil {
				getLogger(r.Context()).WarnContext(r.Context(), "cross-origin request rejected",
					slog.String("error", err.Error()),
					slog.String("origin", r.Header.Get("Origin")))
				http.Error(w, "Cross-origin request rejected", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestSizeLimitMiddleware(maxSize int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unsafeMethod(r) {
				if r.ContentLength > maxSize {
					http.Error(w, fmt.Sprintf("Request body too large. Maximum size: %d bytes", maxSize),
						http.StatusRequestEntityTooLarge)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ipAllowlistMiddleware answers 403 to clients outside allowed.
func ipAllowlistMiddleware(allowed []string) Middleware {
	set := make(map[string]bool, len(allowed))
	for _, ip := range allowed {
		set[ip] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set[remoteIP(r)] {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func buildCSP(directives map[string]string) string {
	parts := make([]string, 0, len(directives))
	for directive, value := range directives {
		if value == "" {
			parts = append(parts, directive)
		} else {
			parts = append(parts, directive+" "+value)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func buildHSTS(config *SecurityConfig) string {
	hsts := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
	if config.HSTSIncludeSubDomains {
		hsts += "; includeSubDomains"
	}
	return hsts
}

func buildPermissionsPolicy(policies map[string][]string) string {
	parts := make([]string, 0, len(policies))
	for feature, allowList := range policies {
		parts = append(parts, fmt.Sprintf("%s=(%s)", feature, strings.Join(allowList, " ")))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.URL.Scheme, "https")
}

// remoteIP strips the port from RemoteAddr. Forwarding headers are
// ignored; the server only listens on the tailnet.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
