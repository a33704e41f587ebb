package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	DBDSN       string `mapstructure:"DB_DSN"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`

	ExpiryWindow         time.Duration `mapstructure:"EXPIRY_WINDOW"`
	ExpirySweepInterval  time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`
	OverdueCheckInterval time.Duration `mapstructure:"OVERDUE_CHECK_INTERVAL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	TelegramToken       string `mapstructure:"TELEGRAM_TOKEN"`
	TelegramAdminChatID int64  `mapstructure:"TELEGRAM_ADMIN_CHAT_ID"`

	Migrations bool `mapstructure:"MIGRATIONS"`
}

// Load reads an optional .env file, then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment:   getenv("ENV"),
		DBDSN:         getenv("DB_DSN"),
		HTTPAddr:      getenv("HTTP_ADDR"),
		JWTSecret:     getenv("JWT_SECRET"),
		TelegramToken: getenv("TELEGRAM_TOKEN"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	var err error
	if cfg.ExpiryWindow, err = duration(getenv, "EXPIRY_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExpirySweepInterval, err = duration(getenv, "EXPIRY_SWEEP_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.OverdueCheckInterval, err = duration(getenv, "OVERDUE_CHECK_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if raw := getenv("TELEGRAM_ADMIN_CHAT_ID"); raw != "" {
		if cfg.TelegramAdminChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
	}

	cfg.Migrations = true
	if raw := getenv("MIGRATIONS"); raw != "" {
		if cfg.Migrations, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("MIGRATIONS: %w", err)
		}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if cfg.IsProduction() && cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required in production")
	}

	return cfg, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, raw)
	}
	return d, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UseDatabase reports whether a Postgres store is configured
func (c *Config) UseDatabase() bool {
	return c.DBDSN != ""
}

// TelegramEnabled reports whether the admin chat mirror should run
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramAdminChatID != 0
}
