package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/course-marketplace-api/internal/clients/http/email"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

type capturePublisher struct {
	key   string
	value []byte
}

func (p *capturePublisher) Publish(_ context.Context, key string, event any) error {
	raw, err := json.Marshal(event)
	p.key, p.value = key, raw
	return err
}

type captureSender struct {
	msgs []email.Message
}

func (s *captureSender) Send(_ context.Context, msg email.Message, _ ...email.SendOption) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func sampleNotice() ports.GrantedNotice {
	return ports.GrantedNotice{
		EnrollmentID: "enr-1",
		BuyerID:      "buyer-1",
		Email:        "buyer@example.com",
		DisplayName:  "Linh",
		Target:       purchase.Level("B1"),
		OrderCode:    1234567890,
		Amount:       10000,
		GrantedAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotifier_PublishesDecodableEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewKafkaNotifier(pub, "marketplace-api").NotifyGranted(context.Background(), sampleNotice()))
	require.Equal(t, "buyer-1", pub.key)

	notice, eventID, err := DecodeGranted(pub.value)
	require.NoError(t, err)
	require.NotEmpty(t, eventID)
	require.Equal(t, sampleNotice(), notice)
}

func TestDecodeGranted_RejectsOtherEvents(t *testing.T) {
	_, _, err := DecodeGranted([]byte(`{"event_type":"order.created","payload":{}}`))
	require.Error(t, err)
	_, _, err = DecodeGranted([]byte(`nope`))
	require.Error(t, err)
}

func TestEmailNotifier_ComposesConfirmation(t *testing.T) {
	sender := &captureSender{}
	require.NoError(t, NewEmailNotifier(sender).NotifyGranted(context.Background(), sampleNotice()))
	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	require.Equal(t, "buyer@example.com", msg.To)
	require.Contains(t, msg.Subject, "level B1 package")
	require.Contains(t, msg.Text, "1234567890")

	notice := sampleNotice()
	notice.Email = ""
	require.ErrorIs(t, NewEmailNotifier(sender).NotifyGranted(context.Background(), notice), ErrNoRecipient)
}
