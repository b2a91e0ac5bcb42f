package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/pscheid92/likelovehate/internal/domain"
)

// Storage backends selectable via STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StoreBackend string `env:"STORE_BACKEND" default:"file"`
	DataDir      string `env:"DATA_DIR" default:"./data"`
	DataFile     string `env:"DATA_FILE" default:"reactions.json"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL"`

	EnableActivityLog bool   `env:"ENABLE_ACTIVITY_LOG" default:"true"`
	LikeColor         string `env:"LIKE_COLOR" default:"#4fc3f7"`
	LoveColor         string `env:"LOVE_COLOR" default:"#e040fb"`
	HateColor         string `env:"HATE_COLOR" default:"#ef5350"`

	CORSAllowOrigins   string  `env:"CORS_ALLOW_ORIGINS" default:"*"`
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" default:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DataPath is the full path of the JSON document used by the file backend.
func (c *Config) DataPath() string {
	return filepath.Join(c.DataDir, c.DataFile)
}

func (c *Config) Colors() domain.ReactionColors {
	return domain.ReactionColors{Like: c.LikeColor, Love: c.LoveColor, Hate: c.HateColor}
}

// AllowedOrigins splits CORS_ALLOW_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendFile:
		if cfg.DataDir == "" || cfg.DataFile == "" {
			return errors.New("DATA_DIR and DATA_FILE are required for the file backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		if err := validateSSLMode(cfg); err != nil {
			return err
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, postgres, redis (got %q)", cfg.StoreBackend)
	}

	colors := []struct{ name, value string }{
		{"LIKE_COLOR", cfg.LikeColor},
		{"LOVE_COLOR", cfg.LoveColor},
		{"HATE_COLOR", cfg.HateColor},
	}
	for _, c := range colors {
		if !hexColor.MatchString(c.value) {
			return fmt.Errorf("%s must be a #rrggbb hex color (got %q)", c.name, c.value)
		}
	}

	if cfg.RateLimitPerSecond <= 0 {
		return errors.New("RATE_LIMIT_PER_SECOND must be positive")
	}
	if cfg.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_BURST must be at least 1")
	}

	return nil
}

func validateSSLMode(cfg *Config) error {
	if cfg.AppEnv != "production" {
		return nil
	}

	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
