package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/platform/messaging"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

const (
	// EventGranted is the envelope type for a newly created enrollment.
	EventGranted = "entitlement.granted"
	// TopicGranted carries EventGranted envelopes.
	TopicGranted = "entitlements.granted"
)

// grantedPayload is the wire form of ports.GrantedNotice.
type grantedPayload struct {
	EnrollmentID string    `json:"enrollment_id"`
	BuyerID      string    `json:"buyer_id"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	TargetKind   string    `json:"target_kind"`
	TargetID     string    `json:"target_id"`
	OrderCode    int64     `json:"order_code,omitempty"`
	Amount       int64     `json:"amount"`
	GrantedAt    time.Time `json:"granted_at"`
}

func toPayload(n ports.GrantedNotice) grantedPayload {
	return grantedPayload{
		EnrollmentID: n.EnrollmentID,
		BuyerID:      n.BuyerID,
		Email:        n.Email,
		DisplayName:  n.DisplayName,
		TargetKind:   string(n.Target.Kind),
		TargetID:     n.Target.ID,
		OrderCode:    n.OrderCode,
		Amount:       n.Amount,
		GrantedAt:    n.GrantedAt.UTC(),
	}
}

// DecodeGranted reads a notice back from a Kafka message value.
func DecodeGranted(value []byte) (ports.GrantedNotice, string, error) {
	var env messaging.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return ports.GrantedNotice{}, "", fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != EventGranted {
		return ports.GrantedNotice{}, env.EventID, fmt.Errorf("unexpected event type %q", env.EventType)
	}
	p, err := messaging.UnwrapPayload[grantedPayload](&env)
	if err != nil {
		return ports.GrantedNotice{}, env.EventID, err
	}
	return ports.GrantedNotice{
		EnrollmentID: p.EnrollmentID,
		BuyerID:      p.BuyerID,
		Email:        p.Email,
		DisplayName:  p.DisplayName,
		Target:       purchase.Target{Kind: purchase.Kind(p.TargetKind), ID: p.TargetID},
		OrderCode:    p.OrderCode,
		Amount:       p.Amount,
		GrantedAt:    p.GrantedAt,
	}, env.EventID, nil
}
