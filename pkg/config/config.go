package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	HTTPPort int `yaml:"http_port"`

	Postgres Postgres `yaml:"postgres"`
	Stripe   Stripe   `yaml:"stripe"`
	SMTP     SMTP     `yaml:"smtp"`

	// Comma-separated broker list; event publishing is disabled when empty.
	KafkaBrokers string `yaml:"kafka_brokers"`

	// How long after creation a buyer may still cancel an order.
	CancelWindow time.Duration `yaml:"cancel_window"`
}

type Postgres struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	DB   string `yaml:"db"`
}

type Stripe struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type SMTP struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// Load builds the configuration from defaults, an optional YAML file pointed
// at by CONFIG_FILE, then environment variable overrides, in that order.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:       "dev",
		LogLevel:     "info",
		HTTPPort:     8080,
		Postgres:     Postgres{Host: "localhost", Port: 5432, User: "shop", Pass: "shop", DB: "shop_db"},
		SMTP:         SMTP{Port: 587},
		CancelWindow: 24 * time.Hour,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)

	cfg.Postgres.Host = getEnv("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = getEnvInt("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = getEnv("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Pass = getEnv("POSTGRES_PASSWORD", cfg.Postgres.Pass)
	cfg.Postgres.DB = getEnv("POSTGRES_DB", cfg.Postgres.DB)

	cfg.Stripe.SecretKey = getEnv("STRIPE_SECRET_KEY", cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret)

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.User = getEnv("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Pass = getEnv("SMTP_PASSWORD", cfg.SMTP.Pass)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)

	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.KafkaBrokers)

	if v := os.Getenv("CANCEL_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CANCEL_WINDOW: %w", err)
		}
		cfg.CancelWindow = d
	}

	return cfg, nil
}

// URL renders a pgx-compatible connection string.
func (p Postgres) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", p.User, p.Pass, p.Host, p.Port, p.DB)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}
