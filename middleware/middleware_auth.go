package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoIdentity means the caller could not be tied to a tailnet user.
var ErrNoIdentity = errors.New("no user identity")

// SignInPath is where anonymous callers are sent when they need a member.
const SignInPath = "/signin"

// AuthProvider handles authentication logic
type AuthProvider interface {
	GetUserEmail(r *http.Request) (string, error)
	CreateOrGetUser(ctx context.Context, email string) (*ContextUser, error)
}

// TailscaleAuthProvider identifies callers by their tailnet login.
type TailscaleAuthProvider struct {
	client  TailscaleClient
	members MemberStore
	logger  *slog.Logger
}

func newTailscaleAuthProvider(client TailscaleClient, members MemberStore, logger *slog.Logger) *TailscaleAuthProvider {
	return &TailscaleAuthProvider{
		client:  client,
		members: members,
		logger:  logger,
	}
}

// GetUserEmail returns ErrNoIdentity for tagged nodes and peers without a
// profile.
func (p *TailscaleAuthProvider) GetUserEmail(r *http.Request) (string, error) {
	who, err := p.client.WhoIs(r.Context(), r.RemoteAddr)
	if err != nil {
		return "", fmt.Errorf("whois %s: %w", r.RemoteAddr, err)
	}

	if who == nil || who.Tagged || who.UserProfile == nil || who.UserProfile.LoginName == "" {
		return "", ErrNoIdentity
	}

	return who.UserProfile.LoginName, nil
}

func (p *TailscaleAuthProvider) CreateOrGetUser(ctx context.Context, email string) (*ContextUser, error) {
	row, err := p.members.CreateOrReturnID(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create or get user: %w", err)
	}

	return &ContextUser{
		ID:        row.ID,
		Email:     email,
		IsAdmin:   row.IsAdmin,
		IsBlocked: row.IsBlocked,
		JoinedAt:  row.DateJoined,
	}, nil
}

// identityMiddleware attaches the caller's member record when there is
// one. Callers without an identity continue as anonymous; only a failing
// member lookup ends the request.
func identityMiddleware(provider AuthProvider, tracer trace.Tracer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := getLogger(ctx)

			if tracer != nil {
				var span trace.Span
				ctx, span = tracer.Start(ctx, "identity.middleware",
					trace.WithAttributes(attribute.String("auth.provider", "tailscale")))
				defer span.End()
			}
			span := trace.SpanFromContext(ctx)

			email, err := provider.GetUserEmail(r)
			if err != nil {
				if !errors.Is(err, ErrNoIdentity) {
					logger.WarnContext(ctx, "identity lookup failed",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr))
				}
				span.SetAttributes(attribute.Bool("user.anonymous", true))
				next.ServeHTTP(w, r)
				return
			}

			user, err := provider.CreateOrGetUser(ctx, email)
			if err != nil {
				logger.ErrorContext(ctx, "failed to create or get user",
					slog.String("error", err.Error()),
					slog.String("email_hash", HashEmail(email)))
				span.RecordError(err)
				span.SetStatus(codes.Error, "user lookup failed")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			rc := getOrCreateRequestContext(ctx)
			rc.User = user

			span.SetAttributes(
				attribute.Int64("user.id", user.ID),
				attribute.Bool("user.is_admin", user.IsAdmin),
				attribute.Bool("user.is_blocked", user.IsBlocked),
			)

			logger.DebugContext(ctx, "user identified",
				slog.Int64("user_id", user.ID),
				slog.Bool("is_admin", user.IsAdmin))

			next.ServeHTTP(w, r.WithContext(withRequestContext(r.Context(), rc)))
		})
	}
}

// redirectToSignIn sends anonymous callers to the sign-in page, keeping
// where they were headed.
func redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	target := SignInPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// requireAdminMiddleware admits admins only. Anonymous callers are
// redirected to sign in; members get 403.
func requireAdminMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := getUser(r.Context())
			switch {
			case !ok:
				redirectToSignIn(w, r)
				return
			case !user.IsAdmin:
				getLogger(r.Context()).WarnContext(r.Context(), "non-admin user attempted admin action",
					slog.Int64("user_id", user.ID),
					slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// userEnrichmentMiddleware adds the user id to the request logger. It
// runs after identityMiddleware.
func userEnrichmentMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := getUser(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			logger := getLogger(r.Context()).With(
				slog.Int64("user_id", user.ID),
				slog.Bool("is_admin", user.IsAdmin),
			)
			ctx := context.WithValue(r.Context(), contextKeyLogger, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HashEmail returns a short stable digest of an email for log correlation.
func HashEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:8])
}
