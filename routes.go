package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/imeyer/tforum/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newMiddlewareSetup wires identity, telemetry and limits for the forum.
// Callers must Close it.
func newMiddlewareSetup(fs *ForumService) *middleware.MiddlewareSetup {
	authProvider := middleware.NewTailscaleAuthProvider(
		NewTailscaleClientAdapter(fs.tailClient),
		NewMemberStoreAdapter(fs.store, fs.logger),
		fs.logger,
	)

	ms := middleware.NewMiddlewareSetup(fs.logger, fs.telemetry.Tracer, fs.telemetry.Meter, telemetryMetrics(fs.telemetry), authProvider)

	if fs.config != nil {
		ms.SecurityConfig.CSRFTrustedOrigins = fs.config.TrustedOrigins

		// Local development tolerates rapid admin changes.
		if fs.config.LogDebug() {
			for i, l := range ms.RateLimitConfig.EndpointLimits {
				if l.Pattern == "/admin" {
					ms.RateLimitConfig.EndpointLimits[i].Rate = 10
				}
			}
		}
	}

	return ms
}

// SetupRoutes mounts every route on its middleware chain.
func SetupRoutes(fs *ForumService, ms *middleware.MiddlewareSetup) http.Handler {
	mux := http.NewServeMux()

	forumChain := ms.CreateForumChain()
	adminChain := ms.CreateAdminChain()
	baseChain := ms.CreateBaseChain()

	allowlist := []string{"127.0.0.1", "::1"}
	if fs.config != nil && len(fs.config.MetricsAllowlist) > 0 {
		allowlist = fs.config.MetricsAllowlist
	}
	metricsChain := ms.CreateMetricsChain(allowlist)

	// Listings
	mux.Handle("GET /{$}", forumChain.ThenFunc(fs.ListTopics))
	mux.Handle("GET /topics", forumChain.ThenFunc(fs.ListTopics))
	mux.Handle("GET /topics/feed", forumChain.ThenFunc(fs.TopicsFeed))
	mux.Handle("GET /nodes/{nid}", forumChain.ThenFunc(fs.ListNodeTopics))
	mux.Handle("GET /nodes/{nid}/feed", forumChain.ThenFunc(fs.NodeFeed))

	// Topic lifecycle
	mux.Handle("GET /topics/new", forumChain.ThenFunc(fs.NewTopic))
	mux.Handle("POST /topics", forumChain.ThenFunc(fs.CreateTopic))
	mux.Handle("POST /topics/preview", forumChain.ThenFunc(fs.Preview))
	mux.Handle("GET /topics/{tid}", forumChain.ThenFunc(fs.TopicOrScope))
	mux.Handle("GET /topics/{tid}/edit", forumChain.ThenFunc(fs.EditTopic))
	mux.Handle("POST /topics/{tid}", forumChain.ThenFunc(fs.UpdateTopic))
	mux.Handle("DELETE /topics/{tid}", forumChain.ThenFunc(fs.DestroyTopic))
	mux.Handle("POST /topics/{tid}/destroy", forumChain.ThenFunc(fs.DestroyTopic))
	mux.Handle("POST /topics/{tid}/replies", forumChain.ThenFunc(fs.CreateReply))

	// Engagement
	mux.Handle("POST /topics/{tid}/favorite", forumChain.Then(fs.FavoriteTopic()))
	mux.Handle("DELETE /topics/{tid}/favorite", forumChain.Then(fs.UnfavoriteTopic()))
	mux.Handle("POST /topics/{tid}/unfavorite", forumChain.Then(fs.UnfavoriteTopic()))
	mux.Handle("POST /topics/{tid}/follow", forumChain.Then(fs.FollowTopic()))
	mux.Handle("DELETE /topics/{tid}/follow", forumChain.Then(fs.UnfollowTopic()))
	mux.Handle("POST /topics/{tid}/unfollow", forumChain.Then(fs.UnfollowTopic()))

	// Moderation decides admin rights per topic, so it stays on the forum chain.
	mux.Handle("GET /topics/{tid}/ban", forumChain.ThenFunc(fs.BanForm))
	mux.Handle("POST /topics/{tid}/action", forumChain.ThenFunc(fs.ModerateTopic))

	mux.Handle("GET /notifications", forumChain.ThenFunc(fs.ListNotifications))
	mux.Handle("GET "+middleware.SignInPath, forumChain.ThenFunc(fs.SignIn))

	mux.Handle("GET /admin", adminChain.ThenFunc(fs.AdminGET))
	mux.Handle("POST /admin", adminChain.ThenFunc(fs.AdminPOST))

	mux.Handle("GET /health", baseChain.ThenFunc(fs.HealthCheck))
	mux.Handle("GET /_/metrics", metricsChain.Then(promhttp.Handler()))

	return HistogramHttpHandler(middleware.NewChain(RecoveryMiddleware(fs.logger)).Then(mux))
}

// RecoveryMiddleware turns a panic into a 500 carrying an error ID that
// also appears in the log.
func RecoveryMiddleware(logger *slog.Logger) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &recoveryResponseWriter{ResponseWriter: w}

			defer func() {
				if err := recover(); err != nil {
					errorID := generateErrorID()

					details := []any{
						slog.Any("panic_error", err),
						slog.String("error_id", errorID),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
						slog.String("user_agent", r.UserAgent()),
					}
					if r.URL.RawQuery != "" {
						details = append(details, slog.String("query", r.URL.RawQuery))
					}
					if r.Form != nil {
						form := make(map[string]string)
						for key, values := range r.Form {
							if !isSensitiveField(key) && len(values) > 0 {
								form[key] = values[0]
							}
						}
						if len(form) > 0 {
							details = append(details, slog.Any("form_data", form))
						}
					}

					logger.ErrorContext(r.Context(), "panic recovered - internal server error",
						slog.Group("panic_details", details...))

					if wrapped.headersSent {
						logger.WarnContext(r.Context(), "cannot send error response - headers already sent",
							slog.String("error_id", errorID))
						return
					}

					w.Header().Set("X-Content-Type-Options", "nosniff")
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprintf(w, "Internal Server Error\nerror id: %s\n", errorID)
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// recoveryResponseWriter remembers whether the response has started.
type recoveryResponseWriter struct {
	http.ResponseWriter
	headersSent bool
}

func (w *recoveryResponseWriter) WriteHeader(statusCode int) {
	if !w.headersSent {
		w.headersSent = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *recoveryResponseWriter) Write(data []byte) (int, error) {
	w.headersSent = true
	return w.ResponseWriter.Write(data)
}

func generateErrorID() string {
	return "ERR-" + uuid.NewString()[:8]
}

func isSensitiveField(fieldName string) bool {
	field := strings.ToLower(fieldName)
	switch field {
	case "pwd", "api_key", "private_key":
		return true
	}
	for _, s := range []string{"password", "passwd", "secret", "token"} {
		if strings.Contains(field, s) {
			return true
		}
	}
	return false
}
