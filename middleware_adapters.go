package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/imeyer/tforum/middleware"
	"github.com/imeyer/tforum/pkg/forum"
)

// TailscaleClientAdapter narrows the local client to what identity
// lookups need.
type TailscaleClientAdapter struct {
	client TailscaleClient
}

func NewTailscaleClientAdapter(client TailscaleClient) *TailscaleClientAdapter {
	return &TailscaleClientAdapter{client: client}
}

func (a *TailscaleClientAdapter) WhoIs(ctx context.Context, remoteAddr string) (*middleware.WhoIsResponse, error) {
	resp, err := a.client.WhoIs(ctx, remoteAddr)
	if err != nil {
		return nil, err
	}

	out := &middleware.WhoIsResponse{
		Tagged: resp.Node != nil && resp.Node.IsTagged(),
	}
	if resp.UserProfile != nil {
		out.UserProfile = &middleware.UserProfile{LoginName: resp.UserProfile.LoginName}
	}
	return out, nil
}

// MemberStoreAdapter resolves members through the forum store.
type MemberStoreAdapter struct {
	store  forum.Store
	logger *slog.Logger
}

func NewMemberStoreAdapter(store forum.Store, logger *slog.Logger) *MemberStoreAdapter {
	return &MemberStoreAdapter{store: store, logger: logger}
}

func (a *MemberStoreAdapter) CreateOrReturnID(ctx context.Context, email string) (middleware.MemberRow, error) {
	row, err := a.store.CreateOrReturnID(ctx, email)
	if err != nil {
		a.logger.ErrorContext(ctx, "member lookup failed",
			loginAttr(email),
			slog.String("error", err.Error()))
		return middleware.MemberRow{}, err
	}
	if row.IsBlocked {
		a.logger.DebugContext(ctx, "blocked member identified", loginAttr(email), slog.Int64("member_id", row.ID))
	}

	return middleware.MemberRow{
		ID:         row.ID,
		IsAdmin:    row.IsAdmin,
		IsBlocked:  row.IsBlocked,
		DateJoined: row.DateJoined.Time,
	}, nil
}

// telemetryMetrics hands the request instruments to the middleware.
func telemetryMetrics(tc *TelemetryConfig) middleware.TelemetryMetrics {
	return middleware.TelemetryMetrics{
		RequestCounter:  tc.Metrics.RequestCounter,
		RequestDuration: tc.Metrics.RequestDuration,
		ErrorCounter:    tc.Metrics.ErrorCounter,
	}
}

// actorFromRequest maps the signed-in member onto a forum.Actor. The
// zero Actor is anonymous.
func actorFromRequest(r *http.Request) forum.Actor {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		return forum.Actor{}
	}

	return forum.Actor{
		ID:       user.ID,
		Admin:    user.IsAdmin,
		Blocked:  user.IsBlocked,
		JoinedAt: user.JoinedAt,
	}
}
