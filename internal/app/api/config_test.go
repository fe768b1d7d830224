package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	paymentsdomain "github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_GATEWAY_URL", "https://gateway.example")
	t.Setenv("PAYMENT_CHECKSUM_KEY", "checksum")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr())
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, paymentsdomain.DefaultOrderTTL, cfg.OrderTTL)
	require.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	require.False(t, cfg.TemporalDisabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ORDER_TTL", "30m")
	t.Setenv("SETTLEMENT_GRACE", "2m")
	t.Setenv("ORDER_CODE_NODE", "3")
	t.Setenv("TEMPORAL_DISABLED", "yes")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr())
	require.Equal(t, 30*time.Minute, cfg.OrderTTL)
	require.Equal(t, 2*time.Minute, cfg.SettlementGrace)
	require.Equal(t, int64(3), cfg.OrderCodeNode)
	require.True(t, cfg.TemporalDisabled)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret": {"JWT_SECRET": ""},
		"missing gateway":    {"PAYMENT_GATEWAY_URL": ""},
		"bad duration":       {"ORDER_TTL": "soon"},
		"negative node":      {"ORDER_CODE_NODE": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
