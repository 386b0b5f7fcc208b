package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultMigrationsPath  = "file://internal/repositories/postgres/migrations"
	defaultCurrency        = "PEN"
	defaultGatewayProvider = "mercadopago"
	defaultGatewayTimeout  = 20 * time.Second
	defaultIdemHeader      = "Idempotency-Key"
	defaultIdemTTL         = 24 * time.Hour
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Gateway     GatewayConfig
	Checkout    CheckoutConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig stores Postgres connection parameters.
type DatabaseConfig struct {
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MigrationsPath string
}

// AuthConfig groups buyer-token verification settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// GatewayConfig collects payment gateway credentials and callback addresses.
type GatewayConfig struct {
	Provider        string
	BaseURL         string
	AccessToken     string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	Timeout         time.Duration
}

// CheckoutConfig holds checkout pipeline defaults.
type CheckoutConfig struct {
	Currency    string
	PriceListID int64
}

// IdempotencyConfig controls replay protection for checkout submissions.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// Load reads configuration from the environment, applying defaults and
// validating the few values the service cannot run without.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:         envOrDefault("PORT", defaultPort),
			ReadTimeout:  envDuration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: envDuration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  envDuration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			DSN:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
			MaxOpenConns:   envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   envInt("DB_MAX_IDLE_CONNS", 5),
			MigrationsPath: envOrDefault("DB_MIGRATIONS_PATH", defaultMigrationsPath),
		},
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
			Issuer:    envOrDefault("AUTH_ISSUER", "schoolkit"),
		},
		Gateway: GatewayConfig{
			Provider:        envOrDefault("GATEWAY_PROVIDER", defaultGatewayProvider),
			BaseURL:         envOrDefault("GATEWAY_BASE_URL", "https://api.mercadopago.com"),
			AccessToken:     strings.TrimSpace(os.Getenv("GATEWAY_ACCESS_TOKEN")),
			NotificationURL: strings.TrimSpace(os.Getenv("GATEWAY_NOTIFICATION_URL")),
			SuccessURL:      strings.TrimSpace(os.Getenv("GATEWAY_SUCCESS_URL")),
			FailureURL:      strings.TrimSpace(os.Getenv("GATEWAY_FAILURE_URL")),
			Timeout:         envDuration("GATEWAY_TIMEOUT", defaultGatewayTimeout),
		},
		Checkout: CheckoutConfig{
			Currency:    strings.ToUpper(envOrDefault("CHECKOUT_CURRENCY", defaultCurrency)),
			PriceListID: int64(envInt("CHECKOUT_PRICE_LIST_ID", 1)),
		},
		Idempotency: IdempotencyConfig{
			Header: envOrDefault("IDEMPOTENCY_HEADER", defaultIdemHeader),
			TTL:    envDuration("IDEMPOTENCY_TTL", defaultIdemTTL),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.DSN == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.Gateway.AccessToken == "" {
		return errors.New("config: GATEWAY_ACCESS_TOKEN is required")
	}
	if len(c.Checkout.Currency) != 3 {
		return fmt.Errorf("config: CHECKOUT_CURRENCY must be a 3-letter code, got %q", c.Checkout.Currency)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
