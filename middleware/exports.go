// Package middleware provides the HTTP middleware the forum mounts its
// routes on: request context, observability, optional tailnet identity,
// security headers, cross-origin protection and rate limiting.
package middleware

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	NewChain = newChain

	// GetUser retrieves the signed-in member from context
	GetUser = getUser
	// GetLogger retrieves the request-scoped logger from context
	GetLogger = getLogger

	// RedirectToSignIn answers anonymous callers that need a member.
	RedirectToSignIn = redirectToSignIn
)

func NewTailscaleAuthProvider(client TailscaleClient, members MemberStore, logger *slog.Logger) AuthProvider {
	return newTailscaleAuthProvider(client, members, logger)
}

func NewMiddlewareSetup(logger *slog.Logger, tracer trace.Tracer, meter metric.Meter, metrics TelemetryMetrics, authProvider AuthProvider) *MiddlewareSetup {
	return newMiddlewareSetup(logger, tracer, meter, metrics, authProvider)
}
