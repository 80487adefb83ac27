package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/imeyer/tforum/pkg/forum"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
	tsnetlog "tailscale.com/types/logger"
)

type TailscaleClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
	ExpandSNIName(ctx context.Context, name string) (fqdn string, ok bool)
	Status(ctx context.Context) (*ipnstate.Status, error)
	StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error)
}

// Pinger reports database liveness. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ForumService holds what the HTTP handlers share.
type ForumService struct {
	tailClient TailscaleClient
	logger     *slog.Logger
	db         Pinger
	store      forum.Store
	forum      *forum.Forum
	telemetry  *TelemetryConfig
	config     *Config
	version    string
	gitSha     string
}

func NewForumService(tailClient TailscaleClient,
	logger *slog.Logger,
	db Pinger,
	store forum.Store,
	f *forum.Forum,
	telemetry *TelemetryConfig,
	config *Config,
	version string,
	gitSha string,
) *ForumService {
	return &ForumService{
		tailClient: tailClient,
		logger:     logger,
		db:         db,
		store:      store,
		forum:      f,
		telemetry:  telemetry,
		config:     config,
		version:    version,
		gitSha:     gitSha,
	}
}

// waitFor sleeps for d unless ctx ends first.
func waitFor(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

var (
	tailscalePollInterval  = 5 * time.Second
	tailscaleLoginInterval = 30 * time.Second
)

func checkTailscaleReady(ctx context.Context, lc TailscaleClient, logger *slog.Logger) error {
	for {
		st, err := lc.Status(ctx)
		if err != nil {
			return fmt.Errorf("error retrieving tailscale status: %w", err)
		}

		delay := tailscalePollInterval
		switch st.BackendState {
		case "NoState":
			logger.DebugContext(ctx, "no state")
		case "NeedsLogin":
			logger.InfoContext(ctx, "needs login to tailscale", slog.String("auth_url", st.AuthURL))
			delay = tailscaleLoginInterval
		case "NeedsMachineAuth":
			logger.InfoContext(ctx, "waiting for machine authorization")
		case "Stopped":
			logger.InfoContext(ctx, "tsnet stopped")
			return nil
		case "Starting":
			logger.InfoContext(ctx, "starting tsnet")
		case "Running":
			nopeers, err := lc.StatusWithoutPeers(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "error retrieving tailscale status", slog.String("error", err.Error()))
				return nil
			}
			logger.InfoContext(ctx, "tsnet running", slog.Any("cert_domains", nopeers.CertDomains))
			return nil
		}

		if err := waitFor(ctx, delay); err != nil {
			return err
		}
	}
}

func createHTTPServer(mux http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":80",
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func createHTTPSServer(mux http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":443",
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func NewTsNetServer(config *Config) *tsnet.Server {
	s := &tsnet.Server{
		Dir:      filepath.Join(config.DataDir, "tsnet"),
		Hostname: config.Hostname,
		UserLogf: tsnetlog.Discard,
		Logf:     tsnetlog.Discard,
	}

	if config.TsnetLog {
		s.UserLogf = log.Printf
		s.Logf = log.Printf
	}

	return s
}

// setupTsNetServer starts tsnet and waits until the node is up.
func setupTsNetServer(ctx context.Context, config *Config, logger *slog.Logger) (*tsnet.Server, TailscaleClient, error) {
	if err := createConfigDir(config.DataDir); err != nil {
		logger.Warn("creating configuration directory failed",
			slog.String("data_dir", config.DataDir),
			slog.String("error", err.Error()))
	}

	s := NewTsNetServer(config)
	if err := s.Start(); err != nil {
		return nil, nil, fmt.Errorf("start tsnet: %w", err)
	}

	lc, err := s.LocalClient()
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("tsnet local client: %w", err)
	}

	if err := checkTailscaleReady(ctx, lc, logger); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("tailscale not ready: %w", err)
	}

	return s, lc, nil
}

func startListeners(s *tsnet.Server) (net.Listener, net.Listener, error) {
	ln, err := s.Listen("tcp", ":80")
	if err != nil {
		return nil, nil, fmt.Errorf("error creating non-TLS listener: %w", err)
	}

	tln, err := s.ListenTLS("tcp", ":443")
	if err != nil {
		ln.Close()
		return nil, nil, fmt.Errorf("error creating TLS listener: %w", err)
	}

	return ln, tln, nil
}

func startServer(server *http.Server, ln net.Listener, logger *slog.Logger, scheme, hostname string) error {
	logger.Info(fmt.Sprintf("Listening on %s://%s", scheme, hostname))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server failed: %w", scheme, err)
	}
	return nil
}

// shutdownServers drains every server within the timeout.
func shutdownServers(logger *slog.Logger, timeout time.Duration, servers ...*http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to gracefully shutdown server",
				slog.String("addr", srv.Addr),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	logger.Info("Servers stopped")
	return errors.Join(errs...)
}

func expandSNIName(ctx context.Context, lc TailscaleClient, hostname string, logger *slog.Logger) string {
	sni, ok := lc.ExpandSNIName(ctx, hostname)
	if !ok {
		logger.Warn("error expanding SNI name", slog.String("hostname", hostname))
		return hostname
	}
	return sni
}
