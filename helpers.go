package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	PoolConfigFunc    = PoolConfig
	NewWithConfigFunc = pgxpool.NewWithConfig

	connectAttempts = 3
	connectBackoff  = 2 * time.Second
)

func createConfigDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(dir, "tsnet"), 0o700)
}

// newLogger writes JSON to stdout, or hands records to handler when one
// is given (the OTLP bridge).
func newLogger(level slog.Level, handler slog.Handler) *slog.Logger {
	if handler == nil {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// setupDatabase connects and pings, retrying a few times so the service
// can start alongside its database.
func setupDatabase(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("database url is not set")
	}

	config, err := PoolConfigFunc(&dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool config: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := NewWithConfigFunc(dbCtx, config)
		if err == nil {
			err = pool.Ping(dbCtx)
			if err != nil {
				pool.Close()
			}
		}
		cancel()

		if err == nil {
			return pool, nil
		}

		lastErr = err
		logger.WarnContext(ctx, "database connection failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt < connectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}

	return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", connectAttempts, lastErr)
}
