package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Hostname    string `yaml:"hostname"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`
	TsnetLog    bool   `yaml:"tsnet_log"`

	ServiceName       string  `yaml:"service_name"`
	ServiceVersion    string  `yaml:"-"`
	TraceMaxBatchSize int     `yaml:"trace_max_batch_size"`
	TraceSampleRate   float64 `yaml:"trace_sample_rate"`
	OTLP              bool    `yaml:"otlp"`

	PageSize         int32 `yaml:"page_size"`
	PopularThreshold int64 `yaml:"popular_threshold"`

	// MetricsAllowlist are the client addresses allowed to scrape /_/metrics.
	MetricsAllowlist []string `yaml:"metrics_allowlist"`
	TrustedOrigins   []string `yaml:"trusted_origins"`

	Logger *slog.Logger `yaml:"-"`
}

func defaultConfig() *Config {
	return &Config{
		Hostname:          "forum",
		DataDir:           dataLocation(),
		LogLevel:          "info",
		ServiceName:       "tforum",
		TraceMaxBatchSize: 512,
		TraceSampleRate:   1.0,
		PageSize:          25,
		PopularThreshold:  5,
		MetricsAllowlist:  []string{"127.0.0.1", "::1"},
	}
}

// LoadConfig layers defaults, the optional YAML file at path and then
// the environment. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, config); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if config.TraceSampleRate < 0 || config.TraceSampleRate > 1 {
		return nil, fmt.Errorf("trace sample rate %v out of range [0,1]", config.TraceSampleRate)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	c.Hostname = envOr("TFORUM_HOSTNAME", c.Hostname)
	c.DataDir = envOr("TFORUM_DATA_DIR", c.DataDir)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = envOr("TFORUM_LOG_LEVEL", c.LogLevel)

	if v, ok := os.LookupEnv("TFORUM_OTLP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TFORUM_OTLP: %w", err)
		}
		c.OTLP = b
	}

	if v, ok := os.LookupEnv("TFORUM_TRACE_SAMPLE_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TFORUM_TRACE_SAMPLE_RATE: %w", err)
		}
		c.TraceSampleRate = f
	}

	return nil
}

// Level maps LogLevel onto slog; unknown names mean info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c *Config) LogDebug() bool {
	return c.Level() <= slog.LevelDebug
}

func dataLocation() string {
	if dir, ok := os.LookupEnv("DATA_DIR"); ok {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "tailscale", "tforum")
}

func envOr(key, defaultVal string) string {
	if result, ok := os.LookupEnv(key); ok && result != "" {
		return result
	}
	return defaultVal
}

// PoolConfig builds the pgx pool configuration. logger may be nil.
func PoolConfig(dsn *string, logger *slog.Logger) (*pgxpool.Config, error) {
	const defaultMaxConns = int32(4)
	const defaultMinConns = int32(0)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 15
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(*dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database configuration: %w", err)
	}

	dbConfig.MaxConns = defaultMaxConns
	dbConfig.MinConns = defaultMinConns
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	if logger == nil {
		return dbConfig, nil
	}

	dbConfig.BeforeConnect = func(ctx context.Context, c *pgx.ConnConfig) error {
		logger.DebugContext(ctx, "creating connection")
		return nil
	}

	dbConfig.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		logger.DebugContext(ctx, "connection created")
		return nil
	}

	dbConfig.BeforeClose = func(c *pgx.Conn) {
		logger.Debug("closing connection")
	}

	return dbConfig, nil
}
