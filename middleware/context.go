package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey int

const (
	contextKeyRequest contextKey = iota
	contextKeyLogger
)

// RequestContext is the per-request state shared between middleware and
// handlers. Middleware mutate it in place; it is never copied.
type RequestContext struct {
	User      *ContextUser // nil when the caller is anonymous
	RequestID string
	TraceID   string
	StartTime time.Time
}

// ContextUser is the signed-in member behind a request.
type ContextUser struct {
	ID        int64
	Email     string
	IsAdmin   bool
	IsBlocked bool
	JoinedAt  time.Time
}

// newRequestContext keeps an inbound request id only if it is a UUID.
func newRequestContext(inbound string) *RequestContext {
	id, err := uuid.Parse(inbound)
	if err != nil {
		id = uuid.New()
	}
	return &RequestContext{RequestID: id.String(), StartTime: time.Now()}
}

func withRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKeyRequest, rc)
}

func getRequestContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKeyRequest).(*RequestContext)
	return rc, ok
}

func getOrCreateRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := getRequestContext(ctx); ok {
		return rc
	}
	return newRequestContext("")
}

func getUser(ctx context.Context) (*ContextUser, bool) {
	if rc, ok := getRequestContext(ctx); ok && rc.User != nil {
		return rc.User, true
	}
	return nil, false
}

func getRequestID(ctx context.Context) string {
	if rc, ok := getRequestContext(ctx); ok {
		return rc.RequestID
	}
	return ""
}

// requestContextMiddleware must run first: everything after it reads or
// fills the RequestContext.
func requestContextMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := newRequestContext(r.Header.Get("X-Request-ID"))
			w.Header().Set("X-Request-ID", rc.RequestID)
			next.ServeHTTP(w, r.WithContext(withRequestContext(r.Context(), rc)))
		})
	}
}
