package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid payment input")
	// ErrInvalidSignature rejects a webhook before it is decoded.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent marks a verified webhook whose body cannot be used.
	ErrMalformedEvent = errors.New("malformed payment event")
	// ErrGrantFailed means the order is PAID but the entitlement is still missing; any channel may retry.
	ErrGrantFailed = errors.New("entitlement grant failed")
	// ErrCodeSpaceExhausted is returned when every generated order code collided.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique order code")
)

// OpenOrderError reports the buyer's in-flight checkout for the same target.
type OpenOrderError struct {
	Code      int64
	ExpiresAt time.Time
}

func (e *OpenOrderError) Error() string {
	return fmt.Sprintf("order %d is still open for this purchase", e.Code)
}

func (e *OpenOrderError) Unwrap() error { return ports.ErrOpenOrderExists }

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidCode) ||
		errors.Is(err, domain.ErrInvalidBuyer) ||
		errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, purchase.ErrInvalidKind) ||
		errors.Is(err, purchase.ErrEmptyID) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
