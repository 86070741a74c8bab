package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL"`
	StoreBackend          string `env:"STORE_BACKEND" envDefault:"redis"`
	StoreKeyPrefix        string `env:"STORE_KEY_PREFIX" envDefault:"balancepro"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	TrainerPhone          string `env:"TRAINER_PHONE,required"`
	TrainerName           string `env:"TRAINER_NAME" envDefault:"Trainer"`
	TrainerSecretHash     string `env:"TRAINER_SECRET_HASH"`
	MemberSessionTTLHours int    `env:"MEMBER_SESSION_TTL_HOURS" envDefault:"720"`
	ConferenceDomain      string `env:"CONFERENCE_DOMAIN" envDefault:"meet.ffmuc.net"`
	ConferenceRoomPrefix  string `env:"CONFERENCE_ROOM_PREFIX" envDefault:"BalanceProStudio"`
	StudioTimezone        string `env:"STUDIO_TIMEZONE" envDefault:"Asia/Kolkata"`
	StaticDir             string `env:"STATIC_DIR"`
}

func (c *Config) MemberSessionTTL() time.Duration {
	return time.Duration(c.MemberSessionTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Location returns the studio time zone used for schedule display times.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.StudioTimezone)
}

func (c *Config) Validate(isProduction bool) error {
	if c.TrainerSecretHash != "" {
		if !strings.HasPrefix(c.TrainerSecretHash, "$2a$") &&
			!strings.HasPrefix(c.TrainerSecretHash, "$2b$") &&
			!strings.HasPrefix(c.TrainerSecretHash, "$2y$") {
			return fmt.Errorf("TRAINER_SECRET_HASH must be a bcrypt hash (generate with: go run scripts/hash-secret.go <secret>)")
		}
	}

	switch c.StoreBackend {
	case StoreBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
		}
	case StoreBackendMemory:
		if isProduction {
			log.Warn().Msg("STORE_BACKEND=memory in production: live class state is not shared between instances")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q", StoreBackendRedis, StoreBackendMemory)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("STUDIO_TIMEZONE: %w", err)
	}

	if c.MemberSessionTTLHours <= 0 {
		return fmt.Errorf("MEMBER_SESSION_TTL_HOURS must be positive")
	}

	if isProduction {
		if c.TrainerSecretHash == "" {
			log.Warn().Msg("TRAINER_SECRET_HASH is empty in production: trainer login only checks the phone number")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
