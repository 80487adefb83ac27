package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tailcfg"
)

func fastTailscalePolling(t *testing.T) {
	t.Helper()
	poll, login := tailscalePollInterval, tailscaleLoginInterval
	tailscalePollInterval, tailscaleLoginInterval = time.Millisecond, time.Millisecond
	t.Cleanup(func() {
		tailscalePollInterval, tailscaleLoginInterval = poll, login
	})
}

func TestCheckTailscaleReady(t *testing.T) {
	fastTailscalePolling(t)

	tests := []struct {
		name    string
		states  []string
		err     error
		wantErr bool
		calls   int
	}{
		{name: "running", states: []string{"Running"}, calls: 1},
		{name: "stopped", states: []string{"Stopped"}, calls: 1},
		{name: "starts then runs", states: []string{"NoState", "Starting", "NeedsLogin", "Running"}, calls: 4},
		{name: "status error", err: errors.New("no local api"), wantErr: true, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			lc := &MockTailscaleClient{
				StatusFunc: func(ctx context.Context) (*ipnstate.Status, error) {
					calls++
					if tt.err != nil {
						return nil, tt.err
					}
					return &ipnstate.Status{BackendState: tt.states[calls-1]}, nil
				},
			}

			err := checkTailscaleReady(context.Background(), lc, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.calls, calls)
		})
	}
}

func TestCheckTailscaleReadyStopsOnCancel(t *testing.T) {
	fastTailscalePolling(t)

	ctx, cancel := context.WithCancel(context.Background())
	lc := &MockTailscaleClient{
		StatusFunc: func(context.Context) (*ipnstate.Status, error) {
			cancel()
			return &ipnstate.Status{BackendState: "NeedsMachineAuth"}, nil
		},
	}

	err := checkTailscaleReady(ctx, lc, discardLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpandSNIName(t *testing.T) {
	lc := &MockTailscaleClient{}
	assert.Equal(t, "forum.tailnet.ts.net", expandSNIName(context.Background(), lc, "forum", discardLogger()))

	lc.ExpandSNINameFunc = func(context.Context, string) (string, bool) { return "", false }
	assert.Equal(t, "forum", expandSNIName(context.Background(), lc, "forum", discardLogger()))
}

func TestTailscaleClientAdapter(t *testing.T) {
	tests := []struct {
		name       string
		resp       *apitype.WhoIsResponse
		wantTagged bool
		wantLogin  string
	}{
		{
			name: "user node",
			resp: &apitype.WhoIsResponse{
				Node:        &tailcfg.Node{ID: 1},
				UserProfile: &tailcfg.UserProfile{LoginName: "alice@example.com"},
			},
			wantLogin: "alice@example.com",
		},
		{
			name: "tagged node",
			resp: &apitype.WhoIsResponse{
				Node:        &tailcfg.Node{ID: 2, Tags: []string{"tag:ci"}},
				UserProfile: &tailcfg.UserProfile{LoginName: "tagged-devices"},
			},
			wantTagged: true,
			wantLogin:  "tagged-devices",
		},
		{
			name:       "no profile",
			resp:       &apitype.WhoIsResponse{},
			wantTagged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewTailscaleClientAdapter(&MockTailscaleClient{
				WhoIsFunc: func(context.Context, string) (*apitype.WhoIsResponse, error) {
					return tt.resp, nil
				},
			})

			got, err := adapter.WhoIs(context.Background(), "100.64.0.1:443")
			require.NoError(t, err)
			assert.Equal(t, tt.wantTagged, got.Tagged)
			if tt.wantLogin == "" {
				assert.Nil(t, got.UserProfile)
			} else {
				assert.Equal(t, tt.wantLogin, got.UserProfile.LoginName)
			}
		})
	}
}

func TestShutdownServers(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())

	assert.NoError(t, shutdownServers(discardLogger(), time.Second, srv.Config))
}
