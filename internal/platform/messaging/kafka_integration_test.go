//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(ctx context.Context, t *testing.T) []string {
	t.Helper()
	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	return brokers
}

func TestProducerConsumer_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	brokers := setupKafka(ctx, t)

	producer := NewProducer(brokers, "entitlements.granted")
	defer producer.Close()
	env, err := NewEnvelope("entitlement.granted", "test", time.Now(), map[string]any{"order_code": 42})
	require.NoError(t, err)
	require.NoError(t, producer.Publish(ctx, "42", env))

	consumer := NewConsumer(brokers, "entitlements.granted", "test-group", WithStartOffset(kafka.FirstOffset))
	defer consumer.Close()

	received := make(chan Envelope, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
			var got Envelope
			if err := json.Unmarshal(payload, &got); err != nil {
				return err
			}
			received <- got
			stop()
			return nil
		})
	}()

	select {
	case got := <-received:
		require.Equal(t, env.EventID, got.EventID)
		require.JSONEq(t, `{"order_code":42}`, string(got.Payload))
	case <-ctx.Done():
		t.Fatal("message not consumed")
	}
}
