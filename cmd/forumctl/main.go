// Command forumctl runs operator tasks against the forum database:
// schema migration, nodes, admin grants and runtime settings.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/imeyer/tforum/pkg/forum"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	gitSha  = "no-commit"
)

// session is an open database for one command.
type session struct {
	store   forum.Store
	migrate func(ctx context.Context) error
	close   func()
}

type opener func(ctx context.Context, dsn string) (*session, error)

func openPool(ctx context.Context, dsn string) (*session, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is not set; use --database-url or DATABASE_URL")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &session{
		store:   forum.NewStore(pool),
		migrate: func(ctx context.Context) error { return forum.Migrate(ctx, pool) },
		close:   pool.Close,
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(openPool).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(open opener) *cobra.Command {
	var (
		dsn      string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:           "forumctl",
		Short:         "Operate a tforum database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	// withSession opens the database around fn.
	withSession := func(fn func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), logLevel)

			s, err := open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer s.close()

			return fn(cmd, args, s, logger)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "forumctl version %s (%s)\n", version, gitSha)
			},
		},
		migrateCmd(withSession),
		nodeCmd(withSession),
		adminCmd(withSession),
		settingsCmd(withSession),
	)

	return cmd
}

type sessionRunner func(fn func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error) func(*cobra.Command, []string) error

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
