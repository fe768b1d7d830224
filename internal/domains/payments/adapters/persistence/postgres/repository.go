package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.OrderRepository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM. The DB must translate driver errors
// (gorm.Config.TranslateError) so unique violations arrive as gorm.ErrDuplicatedKey.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle and schema.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// orderRecord maps the order aggregate to the orders table.
type orderRecord struct {
	Code        int64      `gorm:"primaryKey;column:code;autoIncrement:false"`
	BuyerID     string     `gorm:"column:buyer_id"`
	TargetKind  string     `gorm:"column:target_kind"`
	TargetID    string     `gorm:"column:target_id"`
	Amount      int64      `gorm:"column:amount"`
	Reference   string     `gorm:"column:reference"`
	CheckoutURL string     `gorm:"column:checkout_url"`
	QRPayload   string     `gorm:"column:qr_payload"`
	Status      string     `gorm:"column:status"`
	SettledVia  string     `gorm:"column:settled_via"`
	SettledAt   *time.Time `gorm:"column:settled_at"`
	PaidAmount  int64      `gorm:"column:paid_amount"`
	GatewayRef  string     `gorm:"column:gateway_ref"`
	GrantedAt   *time.Time `gorm:"column:granted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	ExpiresAt   time.Time  `gorm:"column:expires_at"`
}

func (orderRecord) TableName() string { return "orders" }

// Create inserts a new order. A duplicate key is either the open-purchase index or the code.
func (r *Repository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	record := toRecord(order)
	err := r.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return record.toDomain(), nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	if _, findErr := r.FindOpen(ctx, order.BuyerID, order.Target); findErr == nil && order.Status == domain.StatusPending {
		return nil, ports.ErrOpenOrderExists
	}
	return nil, ports.ErrDuplicateCode
}

// GetByCode fetches an order by its code.
func (r *Repository) GetByCode(ctx context.Context, code int64) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// FindOpen returns the buyer's PENDING order for target.
func (r *Repository) FindOpen(ctx context.Context, buyerID string, target purchase.Target) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND target_kind = ? AND target_id = ? AND status = ?",
			buyerID, string(target.Kind), target.ID, string(domain.StatusPending)).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// AttachSession stores the checkout links returned by the gateway.
func (r *Repository) AttachSession(ctx context.Context, code int64, checkoutURL, qrPayload string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("code = ?", code).
		Updates(map[string]any{"checkout_url": checkoutURL, "qr_payload": qrPayload})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Transition issues UPDATE ... WHERE code = ? AND status = 'PENDING'. Zero affected rows means
// another writer settled the order first; the stored row is returned unchanged.
func (r *Repository) Transition(ctx context.Context, code int64, t domain.Transition) (*domain.Order, bool, error) {
	if err := r.ensureDB(); err != nil {
		return nil, false, err
	}
	at := t.At
	updates := map[string]any{
		"status":      string(t.To),
		"settled_via": string(t.Channel),
		"settled_at":  &at,
	}
	if t.To == domain.StatusPaid {
		updates["paid_amount"] = t.PaidAmount
		updates["gateway_ref"] = t.GatewayRef
	}
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("code = ? AND status = ?", code, string(domain.StatusPending)).
		Updates(updates)
	if result.Error != nil {
		return nil, false, result.Error
	}
	stored, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected == 1, nil
}

// MarkGranted records the first successful grant for a PAID order.
func (r *Repository) MarkGranted(ctx context.Context, code int64, at time.Time) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("code = ? AND granted_at IS NULL", code).
		Update("granted_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByCode(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

// PurgeSettled deletes terminal orders that no longer owe a grant.
func (r *Repository) PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).
		Where("status <> ? AND expires_at < ?", string(domain.StatusPending), cutoff).
		Where("NOT (status = ? AND granted_at IS NULL)", string(domain.StatusPaid)).
		Delete(&orderRecord{})
	return result.RowsAffected, result.Error
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func toRecord(order *domain.Order) orderRecord {
	return orderRecord{
		Code:        order.Code,
		BuyerID:     order.BuyerID,
		TargetKind:  string(order.Target.Kind),
		TargetID:    order.Target.ID,
		Amount:      order.Amount,
		Reference:   order.Reference,
		CheckoutURL: order.CheckoutURL,
		QRPayload:   order.QRPayload,
		Status:      string(order.Status),
		SettledVia:  string(order.SettledVia),
		SettledAt:   order.SettledAt,
		PaidAmount:  order.PaidAmount,
		GatewayRef:  order.GatewayRef,
		GrantedAt:   order.GrantedAt,
		CreatedAt:   order.CreatedAt,
		ExpiresAt:   order.ExpiresAt,
	}
}

func (r orderRecord) toDomain() *domain.Order {
	return &domain.Order{
		Code:        r.Code,
		BuyerID:     r.BuyerID,
		Target:      purchase.Target{Kind: purchase.Kind(r.TargetKind), ID: r.TargetID},
		Amount:      r.Amount,
		Reference:   r.Reference,
		CheckoutURL: r.CheckoutURL,
		QRPayload:   r.QRPayload,
		Status:      domain.Status(r.Status),
		SettledVia:  domain.Channel(r.SettledVia),
		SettledAt:   r.SettledAt,
		PaidAmount:  r.PaidAmount,
		GatewayRef:  r.GatewayRef,
		GrantedAt:   r.GrantedAt,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}
