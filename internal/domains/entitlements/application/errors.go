package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid entitlement input")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidID) ||
		errors.Is(err, domain.ErrInvalidBuyer) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, purchase.ErrInvalidKind) ||
		errors.Is(err, purchase.ErrEmptyID) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
