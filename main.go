package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imeyer/tforum/pkg/forum"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"tailscale.com/hostinfo"
)

var (
	configPath        = flag.String("config", envOr("TFORUM_CONFIG", ""), "Path to a YAML config file")
	version    string = "dev"
	gitSha     string = "no-commit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	if err := run(); err != nil {
		slog.Error("tforum exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Level(), nil)
	cfg.Logger = logger

	telemetry, shutdownTelemetry, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Error("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	if telemetry.LogHandler != nil {
		logger = newLogger(cfg.Level(), telemetry.LogHandler)
		cfg.Logger = logger
	}

	hostinfo.SetApp("tforum")
	versionGauge.With(prometheus.Labels{"version": version, "git_commit": gitSha}).Set(1)
	telemetry.Metrics.VersionGauge.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("git_commit", gitSha),
	))

	pool, err := setupDatabase(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := forum.Migrate(ctx, pool); err != nil {
		return err
	}

	store := NewTracedStore(forum.NewStore(pool), telemetry)
	board := forum.NewForum(pool, store, logger,
		forum.WithPageSize(cfg.PageSize),
		forum.WithPopularThreshold(cfg.PopularThreshold),
		forum.WithTracer(telemetry.Tracer),
	)

	s, lc, err := setupTsNetServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	fs := NewForumService(lc, logger, pool, store, board, telemetry, cfg, version, gitSha)

	ms := newMiddlewareSetup(fs)
	defer ms.Close()
	handler := SetupRoutes(fs, ms)

	serverPlain := createHTTPServer(handler)
	serverTLS := createHTTPSServer(handler)

	ln, tln, err := startListeners(s)
	if err != nil {
		return err
	}
	defer ln.Close()
	defer tln.Close()

	sni := expandSNIName(ctx, lc, cfg.Hostname, logger)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return startServer(serverPlain, ln, logger, "http", cfg.Hostname)
	})
	eg.Go(func() error {
		return startServer(serverTLS, tln, logger, "https", sni)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("Shutting down servers")
		return shutdownServers(logger, shutdownTimeout, serverPlain, serverTLS)
	})

	return eg.Wait()
}
