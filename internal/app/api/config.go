package api

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	entnotify "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/notify"
	paymentsdomain "github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/platform/auth"
	settlementworkflows "github.com/Apurer/course-marketplace-api/internal/platform/temporal/workflows/payments"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port        string
	PostgresDSN string
	RedisAddr   string
	// SeedCatalog loads the demo catalog on start; always on without Postgres.
	SeedCatalog bool

	KafkaBrokers []string
	KafkaTopic   string

	EmailAPIURL string
	EmailAPIKey string
	EmailFrom   string

	Gateway GatewayConfig

	JWTSecret string
	TokenTTL  time.Duration
	AdminKey  string

	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool

	OrderTTL        time.Duration
	SettlementGrace time.Duration
	OrderCodeNode   int64
}

// GatewayConfig holds the merchant credentials for the payment provider.
type GatewayConfig struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:        envDefault("PORT", "8080"),
		PostgresDSN: strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:   strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		SeedCatalog: isTruthy(os.Getenv("CATALOG_SEED")),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envDefault("KAFKA_TOPIC", entnotify.TopicGranted),

		EmailAPIURL: strings.TrimSpace(os.Getenv("EMAIL_API_URL")),
		EmailAPIKey: strings.TrimSpace(os.Getenv("EMAIL_API_KEY")),
		EmailFrom:   envDefault("EMAIL_FROM", "no-reply@course-marketplace.local"),

		Gateway: GatewayConfig{
			BaseURL:     strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_URL")),
			ClientID:    strings.TrimSpace(os.Getenv("PAYMENT_CLIENT_ID")),
			APIKey:      strings.TrimSpace(os.Getenv("PAYMENT_API_KEY")),
			ChecksumKey: strings.TrimSpace(os.Getenv("PAYMENT_CHECKSUM_KEY")),
			ReturnURL:   strings.TrimSpace(os.Getenv("PAYMENT_RETURN_URL")),
			CancelURL:   strings.TrimSpace(os.Getenv("PAYMENT_CANCEL_URL")),
		},

		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AdminKey:  strings.TrimSpace(os.Getenv("ADMIN_KEY")),

		TemporalAddress:   envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace: envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:  isTruthy(os.Getenv("TEMPORAL_DISABLED")),
	}

	var err error
	if cfg.Gateway.Timeout, err = envDuration("PAYMENT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = envDuration("JWT_TTL", auth.DefaultTTL); err != nil {
		return Config{}, err
	}
	if cfg.OrderTTL, err = envDuration("ORDER_TTL", paymentsdomain.DefaultOrderTTL); err != nil {
		return Config{}, err
	}
	if cfg.SettlementGrace, err = envDuration("SETTLEMENT_GRACE", settlementworkflows.DefaultGrace); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("ORDER_CODE_NODE")); raw != "" {
		node, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || node < 0 {
			return Config{}, fmt.Errorf("ORDER_CODE_NODE must be a non-negative integer")
		}
		cfg.OrderCodeNode = node
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.Gateway.BaseURL == "" || cfg.Gateway.ChecksumKey == "" {
		return Config{}, errors.New("PAYMENT_GATEWAY_URL and PAYMENT_CHECKSUM_KEY are required")
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 15m", key)
	}
	return d, nil
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

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
