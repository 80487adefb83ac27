package middleware

import (
	"context"
	"time"
)

// TailscaleClient is the slice of the tailnet local client the identity
// middleware needs.
type TailscaleClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*WhoIsResponse, error)
}

// WhoIsResponse is the part of a WhoIs answer the middleware reads.
// Tagged nodes carry no user profile.
type WhoIsResponse struct {
	UserProfile *UserProfile
	Tagged      bool
}

// UserProfile represents a Tailscale user profile
type UserProfile struct {
	LoginName string
}

// MemberStore resolves a login to a member row, creating it on first
// sight.
type MemberStore interface {
	CreateOrReturnID(ctx context.Context, email string) (MemberRow, error)
}

// MemberRow represents a member row from the database
type MemberRow struct {
	ID         int64
	IsAdmin    bool
	IsBlocked  bool
	DateJoined time.Time
}
