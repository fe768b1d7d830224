package migrations

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts. Adapters never migrate on their own.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&orderRecord{},
		&paymentEventRecord{},
		&enrollmentRecord{},
		&levelRecord{},
		&courseRecord{},
		&userRecord{},
		&sessionRecord{},
	)
}

// Order schema mirrors the payments Postgres adapter. The partial unique index allows one
// open checkout per buyer and target.
type orderRecord struct {
	Code        int64      `gorm:"primaryKey;column:code;autoIncrement:false"`
	BuyerID     string     `gorm:"column:buyer_id;size:64;index:idx_orders_open_purchase,unique,where:status = 'PENDING',priority:1"`
	TargetKind  string     `gorm:"column:target_kind;size:16;index:idx_orders_open_purchase,unique,where:status = 'PENDING',priority:2"`
	TargetID    string     `gorm:"column:target_id;size:64;index:idx_orders_open_purchase,unique,where:status = 'PENDING',priority:3"`
	Amount      int64      `gorm:"column:amount"`
	Reference   string     `gorm:"column:reference;size:25"`
	CheckoutURL string     `gorm:"column:checkout_url"`
	QRPayload   string     `gorm:"column:qr_payload"`
	Status      string     `gorm:"column:status;type:varchar(16);index"`
	SettledVia  string     `gorm:"column:settled_via;size:32"`
	SettledAt   *time.Time `gorm:"column:settled_at"`
	PaidAmount  int64      `gorm:"column:paid_amount"`
	GatewayRef  string     `gorm:"column:gateway_ref"`
	GrantedAt   *time.Time `gorm:"column:granted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;index"`
}

func (orderRecord) TableName() string { return "orders" }

// Payment event audit trail.
type paymentEventRecord struct {
	ID           int64          `gorm:"primaryKey;column:id"`
	OrderCode    int64          `gorm:"column:order_code;index"`
	Channel      string         `gorm:"column:channel;size:32"`
	Reported     string         `gorm:"column:reported_status;size:16"`
	Resulting    string         `gorm:"column:resulting_status;size:16"`
	Transitioned bool           `gorm:"column:transitioned"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	Error        string         `gorm:"column:error"`
	ObservedAt   time.Time      `gorm:"column:observed_at;index"`
}

func (paymentEventRecord) TableName() string { return "payment_events" }

// Enrollment schema mirrors the entitlements Postgres adapter.
type enrollmentRecord struct {
	ID             string     `gorm:"primaryKey;column:id;size:36"`
	BuyerID        string     `gorm:"column:buyer_id;size:64;uniqueIndex:idx_enrollments_buyer_target,priority:1"`
	TargetKind     string     `gorm:"column:target_kind;size:16;uniqueIndex:idx_enrollments_buyer_target,priority:2"`
	TargetID       string     `gorm:"column:target_id;size:64;uniqueIndex:idx_enrollments_buyer_target,priority:3"`
	Status         string     `gorm:"column:status;size:16;index"`
	OrderCode      *int64     `gorm:"column:order_code"`
	PaidAmount     int64      `gorm:"column:paid_amount"`
	PaymentDate    *time.Time `gorm:"column:payment_date"`
	EnrolledAt     time.Time  `gorm:"column:enrolled_at"`
	LastAccessedAt *time.Time `gorm:"column:last_accessed_at"`
}

func (enrollmentRecord) TableName() string { return "enrollments" }

type levelRecord struct {
	Code          string `gorm:"primaryKey;column:code;size:16"`
	Title         string `gorm:"column:title"`
	Price         int64  `gorm:"column:price"`
	Published     bool   `gorm:"column:published"`
	StudentsCount int64  `gorm:"column:students_count;not null;default:0"`
}

func (levelRecord) TableName() string { return "levels" }

type courseRecord struct {
	ID            string `gorm:"primaryKey;column:id;size:64"`
	LevelCode     string `gorm:"column:level_code;size:16;index"`
	Title         string `gorm:"column:title"`
	Price         int64  `gorm:"column:price"`
	Published     bool   `gorm:"column:published"`
	StudentsCount int64  `gorm:"column:students_count;not null;default:0"`
}

func (courseRecord) TableName() string { return "courses" }

// User schema mirrors the users Postgres adapter.
type userRecord struct {
	ID           string    `gorm:"primaryKey;column:id;size:36"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	DisplayName  string    `gorm:"column:display_name"`
	PasswordHash string    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userRecord) TableName() string { return "users" }

type sessionRecord struct {
	ID        string    `gorm:"primaryKey;column:id;size:36"`
	UserID    string    `gorm:"column:user_id;size:36;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (sessionRecord) TableName() string { return "user_sessions" }
