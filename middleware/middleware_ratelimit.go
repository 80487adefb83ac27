package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int

	// EndpointLimits apply to unsafe requests whose path matches the
	// pattern; "*" matches one path segment.
	EndpointLimits []EndpointLimit

	// UserRateMultiplier scales limits for signed-in members.
	UserRateMultiplier float64

	CleanupInterval time.Duration
	IncludeHeaders  bool

	Meter        metric.Meter
	MetricPrefix string
}

type EndpointLimit struct {
	Pattern string
	Rate    float64
	Burst   int
}

func defaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond:  10,
		Burst:              20,
		UserRateMultiplier: 5.0,
		CleanupInterval:    5 * time.Minute,
		IncludeHeaders:     true,
		EndpointLimits: []EndpointLimit{
			{Pattern: "/topics", Rate: 0.5, Burst: 2},
			{Pattern: "/topics/*/replies", Rate: 2, Burst: 5},
			{Pattern: "/topics/*/action", Rate: 1, Burst: 5},
			{Pattern: "/admin", Rate: 0.2, Burst: 1},
		},
	}
}

// RateLimiter keeps one token bucket per visitor and limit bucket.
type RateLimiter struct {
	config   *RateLimitConfig
	logger   *slog.Logger
	visitors map[string]*visitor
	mu       sync.Mutex
	stop     chan struct{}
	once     sync.Once

	rateLimitHits  metric.Int64Counter
	activeVisitors metric.Int64Gauge
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(config *RateLimitConfig, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		logger:   logger,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}

	if config.Meter != nil {
		prefix := config.MetricPrefix
		if prefix == "" {
			prefix = "http.ratelimit"
		}

		rl.rateLimitHits, _ = config.Meter.Int64Counter(
			prefix+".hits",
			metric.WithDescription("Number of rate limit hits"),
			metric.WithUnit("{hit}"),
		)

		rl.activeVisitors, _ = config.Meter.Int64Gauge(
			prefix+".visitors",
			metric.WithDescription("Number of active rate limit visitors"),
			metric.WithUnit("{visitor}"),
		)
	}

	if config.CleanupInterval > 0 {
		go rl.cleanupVisitors()
	}

	return rl
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who := rl.visitorKey(r)
			bucket, limit, burst := rl.limitsFor(r)
			v := rl.getVisitor(who+"|"+bucket, who, limit, burst)

			if !v.limiter.Allow() {
				rl.handleRateLimitExceeded(w, r, who, bucket, v.limiter)
				return
			}

			if rl.config.IncludeHeaders {
				addRateLimitHeaders(w, v.limiter)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// visitorKey prefers the member id so that members sharing a NAT do not
// share a bucket.
func (rl *RateLimiter) visitorKey(r *http.Request) string {
	if user, ok := getUser(r.Context()); ok {
		return fmt.Sprintf("user:%d", user.ID)
	}
	return "ip:" + remoteIP(r)
}

func (rl *RateLimiter) limitsFor(r *http.Request) (string, float64, int) {
	if unsafeMethod(r) {
		for _, l := range rl.config.EndpointLimits {
			if matchesPattern(r.URL.Path, l.Pattern) {
				return l.Pattern, l.Rate, l.Burst
			}
		}
	}
	return "default", rl.config.RequestsPerSecond, rl.config.Burst
}

func (rl *RateLimiter) getVisitor(key, who string, limit float64, burst int) *visitor {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if ok {
		v.lastSeen = time.Now()
		return v
	}

	if strings.HasPrefix(who, "user:") && rl.config.UserRateMultiplier > 0 {
		limit *= rl.config.UserRateMultiplier
		burst = int(float64(burst) * rl.config.UserRateMultiplier)
	}

	v = &visitor{
		limiter:  rate.NewLimiter(rate.Limit(limit), burst),
		lastSeen: time.Now(),
	}
	rl.visitors[key] = v

	if rl.activeVisitors != nil {
		rl.activeVisitors.Record(context.Background(), int64(len(rl.visitors)))
	}
	return v
}

func (rl *RateLimiter) handleRateLimitExceeded(w http.ResponseWriter, r *http.Request, who, bucket string, limiter *rate.Limiter) {
	getLogger(r.Context()).WarnContext(r.Context(), "rate limit exceeded",
		slog.String("visitor_type", visitorType(who)),
		slog.String("bucket", bucket),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	if rl.rateLimitHits != nil {
		rl.rateLimitHits.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("visitor_type", visitorType(who)),
			attribute.String("bucket", bucket),
		))
	}

	if rl.config.IncludeHeaders {
		addRateLimitHeaders(w, limiter)
		if res := limiter.Reserve(); res.OK() {
			delay := res.Delay()
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
		}
	}

	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func addRateLimitHeaders(w http.ResponseWriter, limiter *rate.Limiter) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
	w.Header().Set("X-RateLimit-Policy", fmt.Sprintf("%.2f;w=1;burst=%d", float64(limiter.Limit()), limiter.Burst()))
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if now.Sub(v.lastSeen) > rl.config.CleanupInterval {
					delete(rl.visitors, key)
				}
			}
			if rl.activeVisitors != nil {
				rl.activeVisitors.Record(context.Background(), int64(len(rl.visitors)))
			}
			rl.mu.Unlock()
		}
	}
}

// matchesPattern compares path segments; "*" matches any single segment.
func matchesPattern(path, pattern string) bool {
	ps := strings.Split(strings.Trim(path, "/"), "/")
	qs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(ps) != len(qs) {
		return false
	}
	for i := range qs {
		if qs[i] != "*" && qs[i] != ps[i] {
			return false
		}
	}
	return true
}

func visitorType(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}
