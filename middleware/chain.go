package middleware

import (
	"net/http"
	"slices"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered, immutable list of middleware. The first entry is the
// outermost wrapper and sees the request first.
type Chain struct {
	middlewares []Middleware
}

func newChain(mw ...Middleware) *Chain {
	return &Chain{middlewares: slices.Clone(mw)}
}

func (c *Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for _, mw := range slices.Backward(c.middlewares) {
		h = mw(h)
	}
	return h
}

func (c *Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	if fn == nil {
		return c.Then(nil)
	}
	return c.Then(fn)
}

// Append returns a longer chain and leaves c as it was.
func (c *Chain) Append(mw ...Middleware) *Chain {
	return &Chain{middlewares: slices.Concat(c.middlewares, mw)}
}

// when applies mw only to requests matching cond.
func when(cond func(*http.Request) bool, mw Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		guarded := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cond(r) {
				guarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// unsafeMethod matches requests that may change state.
func unsafeMethod(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// statusRecorder remembers what the handler wrote so logging and metrics
// can report it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
	sent    bool
}

func newResponseWriter(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.sent {
		return
	}
	rec.sent = true
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.sent {
		rec.WriteHeader(http.StatusOK)
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)
	return n, err
}

func (rec *statusRecorder) Status() int         { return rec.status }
func (rec *statusRecorder) BytesWritten() int64 { return rec.written }

func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
