package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every event published by the marketplace.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	TraceID      string          `json:"trace_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// NewEnvelope encodes payload under a fresh event id.
func NewEnvelope(eventType, producer string, occurredAt time.Time, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   occurredAt.UTC(),
		Producer:     producer,
		Payload:      raw,
	}, nil
}

// UnwrapPayload decodes the envelope payload into T.
func UnwrapPayload[T any](env *Envelope) (T, error) {
	var t T
	if env == nil {
		return t, fmt.Errorf("decode payload: nil envelope")
	}
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
