package memory

import (
	"context"
	"sync"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
)

var _ ports.EventLog = (*EventLog)(nil)

// EventLog keeps payment events in memory.
type EventLog struct {
	mu      sync.Mutex
	records []domain.EventRecord
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Record(_ context.Context, record domain.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record.Payload = append([]byte(nil), record.Payload...)
	l.records = append(l.records, record)
	return nil
}

// ForOrder returns the events observed for code, oldest first.
func (l *EventLog) ForOrder(code int64) []domain.EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.EventRecord
	for _, rec := range l.records {
		if rec.OrderCode == code {
			out = append(out, rec)
		}
	}
	return out
}
