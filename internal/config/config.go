package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Postgres  PostgresConfig  `json:"postgres"`
	Redis     RedisConfig     `json:"redis"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Abuse     AbuseConfig     `json:"abuse"`
	Alerts    AlertConfig     `json:"alerts"`
	Auth      AuthConfig      `json:"auth"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TierLimits configures the windows for one plan tier.
// -1 on any granularity means unlimited.
type TierLimits struct {
	Name             string `json:"name"`
	PerMinute        int    `json:"per_minute"`
	PerHour          int    `json:"per_hour"`
	PerDay           int    `json:"per_day"`
	WarningThreshold int    `json:"warning_threshold"`
}

type RateLimitConfig struct {
	Tiers []TierLimits `json:"tiers"`

	// StoreTimeoutMs bounds a single durable-store round trip before the
	// call fails over to the in-process store.
	StoreTimeoutMs int `json:"store_timeout_ms"`
}

func (r RateLimitConfig) StoreTimeout() time.Duration {
	if r.StoreTimeoutMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(r.StoreTimeoutMs) * time.Millisecond
}

type AbuseConfig struct {
	RapidFireThreshold int     `json:"rapid_fire_threshold"`
	SpikeMultiplier    float64 `json:"spike_multiplier"`
	OverageMultiplier  float64 `json:"overage_multiplier"`
}

type AlertConfig struct {
	WebhookURL   string  `json:"webhook_url"`
	QueueSize    int     `json:"queue_size"`
	MaxPerSecond float64 `json:"max_per_second"`
}

type AuthConfig struct {
	JWTSecret   string `json:"-"`
	ExpiryHours int    `json:"expiry_hours"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Abuse.RapidFireThreshold <= 0 {
		cfg.Abuse.RapidFireThreshold = 10
	}
	if cfg.Abuse.SpikeMultiplier <= 0 {
		cfg.Abuse.SpikeMultiplier = 3
	}
	if cfg.Abuse.OverageMultiplier <= 0 {
		cfg.Abuse.OverageMultiplier = 1.5
	}
	if cfg.Alerts.QueueSize <= 0 {
		cfg.Alerts.QueueSize = 256
	}
	if cfg.Alerts.MaxPerSecond <= 0 {
		cfg.Alerts.MaxPerSecond = 5
	}
	if cfg.Auth.ExpiryHours <= 0 {
		cfg.Auth.ExpiryHours = 24
	}
}

// Secrets come from the environment, not config.json
func applyEnv(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alerts.WebhookURL = v
	}
}

// Validate rejects configurations the engine cannot safely run with.
// These abort startup; runtime errors never do.
func (c *Config) Validate() error {
	if len(c.RateLimit.Tiers) == 0 {
		return fmt.Errorf("rate_limit.tiers must not be empty")
	}

	hasFree := false
	for _, tier := range c.RateLimit.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("rate_limit tier with empty name")
		}
		if tier.Name == "free" {
			hasFree = true
		}

		// Every granularity must be set explicitly: a tier that forgot
		// per_hour must not silently become boundless.
		granularities := []struct {
			name  string
			limit int
		}{
			{"per_minute", tier.PerMinute},
			{"per_hour", tier.PerHour},
			{"per_day", tier.PerDay},
		}
		for _, g := range granularities {
			if g.limit == 0 || g.limit < -1 {
				return fmt.Errorf("tier %q: %s must be a positive limit or -1 for unlimited, got %d",
					tier.Name, g.name, g.limit)
			}
		}

		if tier.PerDay != -1 && tier.WarningThreshold >= tier.PerDay {
			return fmt.Errorf("tier %q: warning_threshold (%d) must be below per_day (%d)",
				tier.Name, tier.WarningThreshold, tier.PerDay)
		}
	}

	if !hasFree {
		return fmt.Errorf("rate_limit.tiers must include a \"free\" tier (fallback for unknown plans)")
	}

	return nil
}
