// Package config loads service settings from the environment, reading a
// .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port             string
	Storage          string
	PostgresURL      string
	MigrationsPath   string
	KafkaBrokers     []string
	OrderEventsTopic string
	NotifierGroup    string
	EmailServiceURL  string
	TracingEnabled   bool
	OTLPEndpoint     string
	RestockOnCancel  bool
	LogLevel         slog.Level
}

// Load reads the environment. Values that are present but malformed are
// errors; absent values take their defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		Storage:          strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		PostgresURL:      os.Getenv("POSTGRES_URL"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "file://migrations"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		NotifierGroup:    getEnv("NOTIFIER_GROUP", "order-notifier"),
		EmailServiceURL:  os.Getenv("EMAIL_SERVICE_URL"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var errs []error
	var err error
	if cfg.TracingEnabled, err = getBool("TRACING_ENABLED", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.RestockOnCancel, err = getBool("RESTOCK_ON_CANCEL", false); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "INFO"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage))
	}

	return cfg, errors.Join(errs...)
}

func (c Config) RequirePostgres() error {
	if c.PostgresURL == "" {
		return errors.New("POSTGRES_URL environment variable is required")
	}
	return nil
}

func (c Config) RequireKafka() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS environment variable is required")
	}
	return nil
}

func (c Config) RequireEmail() error {
	if c.EmailServiceURL == "" {
		return errors.New("EMAIL_SERVICE_URL environment variable is required")
	}
	return nil
}

// Logger builds the JSON logger every binary writes to stdout.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
