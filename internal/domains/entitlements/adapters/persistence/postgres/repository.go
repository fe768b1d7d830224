package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists enrollments in PostgreSQL using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle and schema.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// enrollmentRecord maps an enrollment to the enrollments table.
type enrollmentRecord struct {
	ID             string     `gorm:"primaryKey;column:id"`
	BuyerID        string     `gorm:"column:buyer_id"`
	TargetKind     string     `gorm:"column:target_kind"`
	TargetID       string     `gorm:"column:target_id"`
	Status         string     `gorm:"column:status"`
	OrderCode      *int64     `gorm:"column:order_code"`
	PaidAmount     int64      `gorm:"column:paid_amount"`
	PaymentDate    *time.Time `gorm:"column:payment_date"`
	EnrolledAt     time.Time  `gorm:"column:enrolled_at"`
	LastAccessedAt *time.Time `gorm:"column:last_accessed_at"`
}

func (enrollmentRecord) TableName() string { return "enrollments" }

// Insert relies on the unique (buyer, kind, id) index: a conflicting insert does nothing and
// the surviving row is read back.
func (r *Repository) Insert(ctx context.Context, e *domain.Enrollment) (*domain.Enrollment, bool, error) {
	if err := r.ensureDB(); err != nil {
		return nil, false, err
	}
	if e == nil {
		return nil, false, errors.New("enrollment is nil")
	}
	record := toRecord(e)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "buyer_id"}, {Name: "target_kind"}, {Name: "target_id"}},
			DoNothing: true,
		}).Create(&record)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return record.toDomain(), true, nil
	}
	existing, err := r.Get(ctx, e.BuyerID, e.Target)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *Repository) Get(ctx context.Context, buyerID string, target purchase.Target) (*domain.Enrollment, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record enrollmentRecord
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND target_kind = ? AND target_id = ?", buyerID, string(target.Kind), target.ID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Enrollment, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record enrollmentRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Enrollment, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []enrollmentRecord
	if err := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).Order("enrolled_at").Find(&records).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Enrollment, 0, len(records))
	for i := range records {
		result = append(result, records[i].toDomain())
	}
	return result, nil
}

func (r *Repository) Reactivate(ctx context.Context, id string, orderCode, paidAmount int64, paidAt time.Time) (*domain.Enrollment, bool, error) {
	if err := r.ensureDB(); err != nil {
		return nil, false, err
	}
	updates := map[string]any{
		"status":       string(domain.StatusActive),
		"order_code":   nullableCode(orderCode),
		"paid_amount":  paidAmount,
		"payment_date": nullableTime(paidAt),
	}
	// the refunded order itself never brings the row back
	return r.compareAndSet(ctx, id, "status = ? AND order_code IS DISTINCT FROM ?",
		[]any{string(domain.StatusRefunded), nullableCode(orderCode)}, updates)
}

func (r *Repository) Refund(ctx context.Context, id string) (*domain.Enrollment, bool, error) {
	if err := r.ensureDB(); err != nil {
		return nil, false, err
	}
	updates := map[string]any{"status": string(domain.StatusRefunded)}
	return r.compareAndSet(ctx, id, "status <> ?", []any{string(domain.StatusRefunded)}, updates)
}

func (r *Repository) Touch(ctx context.Context, id string, at time.Time) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&enrollmentRecord{}).Where("id = ?", id).Update("last_accessed_at", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// compareAndSet applies updates only while guard holds, then returns the stored row.
func (r *Repository) compareAndSet(ctx context.Context, id, guard string, args []any, updates map[string]any) (*domain.Enrollment, bool, error) {
	result := r.db.WithContext(ctx).Model(&enrollmentRecord{}).
		Where("id = ?", id).
		Where(guard, args...).
		Updates(updates)
	if result.Error != nil {
		return nil, false, result.Error
	}
	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected == 1, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres repository not configured")
	}
	return nil
}

func toRecord(e *domain.Enrollment) enrollmentRecord {
	return enrollmentRecord{
		ID:             e.ID,
		BuyerID:        e.BuyerID,
		TargetKind:     string(e.Target.Kind),
		TargetID:       e.Target.ID,
		Status:         string(e.Status),
		OrderCode:      nullableCode(e.OrderCode),
		PaidAmount:     e.PaidAmount,
		PaymentDate:    e.PaymentDate,
		EnrolledAt:     e.EnrolledAt,
		LastAccessedAt: e.LastAccessedAt,
	}
}

func (r enrollmentRecord) toDomain() *domain.Enrollment {
	e := &domain.Enrollment{
		ID:             r.ID,
		BuyerID:        r.BuyerID,
		Target:         purchase.Target{Kind: purchase.Kind(r.TargetKind), ID: r.TargetID},
		Status:         domain.Status(r.Status),
		PaidAmount:     r.PaidAmount,
		PaymentDate:    r.PaymentDate,
		EnrolledAt:     r.EnrolledAt,
		LastAccessedAt: r.LastAccessedAt,
	}
	if r.OrderCode != nil {
		e.OrderCode = *r.OrderCode
	}
	return e
}

func nullableCode(code int64) *int64 {
	if code == 0 {
		return nil
	}
	return &code
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
