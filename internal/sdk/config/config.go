// Package config loads runtime settings for the account service from
// the environment. The resulting struct is built once in main and
// injected into the components that need it; no package reads the
// environment after startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds runtime settings for the account service.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSchema   string

	// JWTSecret signs session tokens. Configuration-provided; the
	// service refuses to start without one.
	JWTSecret    string
	JWTIssuer    string
	JWTExpiresIn time.Duration

	// ResetTokenTTL bounds the password-reset validity window.
	ResetTokenTTL time.Duration

	MailAPIURL    string
	MailAPIKey    string
	MailFromEmail string
	MailFromName  string

	SentryDSN   string
	Environment string

	CookieSecure bool
}

// Load builds a Config from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port: envOrDefault("PORT", "8080"),

		DBHost:     envOrDefault("NATOURS_DB_HOST", "localhost"),
		DBPort:     envOrDefault("NATOURS_DB_PORT", "5432"),
		DBUser:     envOrDefault("NATOURS_DB_USERNAME", "postgres"),
		DBPassword: os.Getenv("NATOURS_DB_PASSWORD"),
		DBName:     envOrDefault("NATOURS_DB_DATABASE", "natours"),
		DBSchema:   envOrDefault("NATOURS_DB_SCHEMA", "public"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: envOrDefault("JWT_ISSUER", "natours"),

		MailAPIURL:    envOrDefault("MAIL_API_URL", "https://send.api.mailtrap.io/api/send"),
		MailAPIKey:    os.Getenv("MAIL_API_KEY"),
		MailFromEmail: envOrDefault("MAIL_FROM_EMAIL", "noreply@natours.io"),
		MailFromName:  envOrDefault("MAIL_FROM_NAME", "Natours"),

		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: envOrDefault("SENTRY_ENVIRONMENT", "development"),

		CookieSecure: os.Getenv("COOKIE_SECURE") == "true",
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET must be set")
	}

	var err error
	cfg.JWTExpiresIn, err = envDuration("JWT_EXPIRES_IN", 90*24*time.Hour)
	if err != nil {
		return Config{}, err
	}

	cfg.ResetTokenTTL, err = envDuration("RESET_TOKEN_TTL", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
