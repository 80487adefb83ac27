package main

import (
	"context"
	"errors"

	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tailcfg"
)

// MockTailscaleClient answers WhoIs from a table of remote addresses.
type MockTailscaleClient struct {
	WhoIsFunc              func(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
	ExpandSNINameFunc      func(ctx context.Context, name string) (string, bool)
	StatusFunc             func(ctx context.Context) (*ipnstate.Status, error)
	StatusWithoutPeersFunc func(ctx context.Context) (*ipnstate.Status, error)
}

var errUnknownPeer = errors.New("unknown peer")

func (m *MockTailscaleClient) WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error) {
	if m.WhoIsFunc != nil {
		return m.WhoIsFunc(ctx, remoteAddr)
	}
	return nil, errUnknownPeer
}

func (m *MockTailscaleClient) ExpandSNIName(ctx context.Context, name string) (string, bool) {
	if m.ExpandSNINameFunc != nil {
		return m.ExpandSNINameFunc(ctx, name)
	}
	return name + ".tailnet.ts.net", true
}

func (m *MockTailscaleClient) Status(ctx context.Context) (*ipnstate.Status, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &ipnstate.Status{BackendState: "Running"}, nil
}

func (m *MockTailscaleClient) StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error) {
	if m.StatusWithoutPeersFunc != nil {
		return m.StatusWithoutPeersFunc(ctx)
	}
	return &ipnstate.Status{BackendState: "Running", CertDomains: []string{"forum.tailnet.ts.net"}}, nil
}

// peers maps remote addresses to tailnet logins for WhoIs.
func peers(logins map[string]string) *MockTailscaleClient {
	return &MockTailscaleClient{
		WhoIsFunc: func(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error) {
			login, ok := logins[remoteAddr]
			if !ok {
				return nil, errUnknownPeer
			}
			return &apitype.WhoIsResponse{
				Node:        &tailcfg.Node{ID: 1},
				UserProfile: &tailcfg.UserProfile{LoginName: login},
			}, nil
		},
	}
}

// MockPinger fails when Err is set.
type MockPinger struct {
	Err error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Err
}
