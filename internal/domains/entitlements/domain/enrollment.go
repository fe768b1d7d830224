package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// Status enumerates enrollment progression. Enrollments are never deleted.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusRefunded  Status = "refunded"
)

var (
	ErrInvalidID       = errors.New("enrollment id is required")
	ErrInvalidBuyer    = errors.New("buyer id is required")
	ErrInvalidStatus   = errors.New("enrollment status is invalid")
	ErrAlreadyRefunded = errors.New("enrollment already refunded")
)

// GrantsAccess reports whether the status lets the buyer open course content.
func (s Status) GrantsAccess() bool {
	return s == StatusActive || s == StatusPaused
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusPaused, StatusRefunded:
		return true
	default:
		return false
	}
}

// Enrollment is a buyer's entitlement to a course or a whole level package.
type Enrollment struct {
	ID      string
	BuyerID string
	Target  purchase.Target
	Status  Status
	// OrderCode is zero for enrollments created outside checkout.
	OrderCode      int64
	PaidAmount     int64
	PaymentDate    *time.Time
	EnrolledAt     time.Time
	LastAccessedAt *time.Time
}

// NewEnrollment builds an active enrollment paid by orderCode.
func NewEnrollment(id, buyerID string, target purchase.Target, orderCode, paidAmount int64, paidAt, now time.Time) (*Enrollment, error) {
	e := &Enrollment{
		ID:         strings.TrimSpace(id),
		BuyerID:    strings.TrimSpace(buyerID),
		Target:     target,
		Status:     StatusActive,
		OrderCode:  orderCode,
		PaidAmount: paidAmount,
		EnrolledAt: now.UTC(),
	}
	if !paidAt.IsZero() {
		at := paidAt.UTC()
		e.PaymentDate = &at
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Enrollment) Validate() error {
	if e.ID == "" {
		return ErrInvalidID
	}
	if e.BuyerID == "" {
		return ErrInvalidBuyer
	}
	if err := e.Target.Validate(); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (e *Enrollment) GrantsAccess() bool { return e != nil && e.Status.GrantsAccess() }

// Refund moves the enrollment to refunded; refunding twice is an error.
func (e *Enrollment) Refund() error {
	if e.Status == StatusRefunded {
		return ErrAlreadyRefunded
	}
	e.Status = StatusRefunded
	return nil
}

// Reactivate reuses a refunded enrollment for a new purchase of the same target.
func (e *Enrollment) Reactivate(orderCode, paidAmount int64, paidAt time.Time) {
	e.Status = StatusActive
	e.OrderCode = orderCode
	e.PaidAmount = paidAmount
	if !paidAt.IsZero() {
		at := paidAt.UTC()
		e.PaymentDate = &at
	}
}

// Touch records an access.
func (e *Enrollment) Touch(at time.Time) {
	at = at.UTC()
	e.LastAccessedAt = &at
}
