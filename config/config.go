// config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from the process environment (after godotenv has loaded .env).
type Config struct {
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	Port           int    `envconfig:"PORT" default:"5200"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	// GatewayToken is optional; when set every request must carry it.
	GatewayToken string `envconfig:"GATEWAY_TOKEN"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	Timezone string `envconfig:"TIMEZONE" default:"Europe/Moscow"`

	Economy Economy
	Redis   Redis
	R2      R2

	SchedulerEnabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"15m"`
}

// Economy holds the tunable kinetics amounts.
type Economy struct {
	TournamentEntryFee int64 `envconfig:"TOURNAMENT_ENTRY_FEE" default:"100"`
	StartingKinetics   int64 `envconfig:"STARTING_KINETICS" default:"100"`
	AddSportCost       int64 `envconfig:"ADD_SPORT_COST" default:"100"`
}

// Redis configures the optional leaderboard cache. Empty Addr disables it.
type Redis struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"LEADERBOARD_CACHE_TTL" default:"5m"`
}

// R2 configures presigned uploads for diary media. Empty Bucket disables it.
type R2 struct {
	AccountID       string        `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string        `envconfig:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string        `envconfig:"R2_ACCESS_KEY_SECRET"`
	Bucket          string        `envconfig:"R2_BUCKET_NAME"`
	CDNBaseURL      string        `envconfig:"CDN_BASE_URL"`
	PresignTTL      time.Duration `envconfig:"R2_PRESIGN_TTL" default:"15m"`
}

// Enabled reports whether enough of R2 is configured to sign uploads.
func (r R2) Enabled() bool {
	return r.Bucket != "" && r.AccountID != "" && r.AccessKeyID != ""
}

// Load decodes the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.Economy.TournamentEntryFee < 0 || c.Economy.StartingKinetics < 0 || c.Economy.AddSportCost < 0 {
		return fmt.Errorf("economy amounts must be non-negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone used to decide tournament weeks.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Origins returns ALLOWED_ORIGINS trimmed and re-joined the way fiber's cors expects.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "*"
	}
	return strings.Join(out, ",")
}
