package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
)

var _ ports.EventLog = (*EventLog)(nil)

// EventLog appends payment events to the payment_events table.
type EventLog struct {
	db *gorm.DB
}

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

type paymentEventRecord struct {
	ID           int64          `gorm:"primaryKey;column:id"`
	OrderCode    int64          `gorm:"column:order_code"`
	Channel      string         `gorm:"column:channel"`
	Reported     string         `gorm:"column:reported_status"`
	Resulting    string         `gorm:"column:resulting_status"`
	Transitioned bool           `gorm:"column:transitioned"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	Error        string         `gorm:"column:error"`
	ObservedAt   time.Time      `gorm:"column:observed_at"`
}

func (paymentEventRecord) TableName() string { return "payment_events" }

func (l *EventLog) Record(ctx context.Context, record domain.EventRecord) error {
	if l == nil || l.db == nil {
		return errors.New("postgres payment event log not configured")
	}
	row := paymentEventRecord{
		OrderCode:    record.OrderCode,
		Channel:      string(record.Channel),
		Reported:     string(record.Reported),
		Resulting:    string(record.Resulting),
		Transitioned: record.Transitioned,
		Error:        record.Error,
		ObservedAt:   record.ObservedAt,
	}
	// only well-formed bodies go into the JSONB column
	if len(record.Payload) > 0 && json.Valid(record.Payload) {
		row.Payload = datatypes.JSON(record.Payload)
	}
	return l.db.WithContext(ctx).Create(&row).Error
}

// ForOrder lists the events observed for code, oldest first.
func (l *EventLog) ForOrder(ctx context.Context, code int64) ([]domain.EventRecord, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("postgres payment event log not configured")
	}
	var rows []paymentEventRecord
	if err := l.db.WithContext(ctx).Where("order_code = ?", code).Order("observed_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.EventRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.EventRecord{
			OrderCode:    row.OrderCode,
			Channel:      domain.Channel(row.Channel),
			Reported:     domain.Status(row.Reported),
			Resulting:    domain.Status(row.Resulting),
			Transitioned: row.Transitioned,
			Payload:      []byte(row.Payload),
			Error:        row.Error,
			ObservedAt:   row.ObservedAt,
		})
	}
	return out, nil
}
