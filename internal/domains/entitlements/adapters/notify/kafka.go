package notify

import (
	"context"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/platform/messaging"
)

var _ ports.Notifier = (*KafkaNotifier)(nil)

// Publisher is satisfied by messaging.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// KafkaNotifier hands confirmations to cmd/notifier through a topic.
type KafkaNotifier struct {
	publisher Publisher
	producer  string
}

func NewKafkaNotifier(publisher Publisher, producer string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, producer: producer}
}

func (n *KafkaNotifier) NotifyGranted(ctx context.Context, notice ports.GrantedNotice) error {
	env, err := messaging.NewEnvelope(EventGranted, n.producer, notice.GrantedAt, toPayload(notice))
	if err != nil {
		return err
	}
	// keyed by buyer so one buyer's events stay ordered
	return n.publisher.Publish(ctx, notice.BuyerID, env)
}
