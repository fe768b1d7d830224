package marketplaceserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	catalogports "github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
	entapp "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/application"
	entdomain "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	entports "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	paymentsapp "github.com/Apurer/course-marketplace-api/internal/domains/payments/application"
	paymentsports "github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	userapp "github.com/Apurer/course-marketplace-api/internal/domains/users/application"
	userports "github.com/Apurer/course-marketplace-api/internal/domains/users/ports"
	apierrors "github.com/Apurer/course-marketplace-api/internal/shared/errors"
)

var problems = apierrors.NewChainedResponder("",
	paymentsProblem,
	entitlementsProblem,
	usersProblem,
	catalogProblem,
)

// respondProblem maps a ProblemDetail through the shared responder.
func respondProblem(c *gin.Context, problem apierrors.ProblemDetail) {
	problems.Respond(c, problem)
}

// respondError runs err through the per-context mappers; unmatched errors become 500s.
func respondError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	problems.RespondError(c, err)
}

func paymentsProblem(err error) (apierrors.ProblemDetail, bool) {
	var open *paymentsapp.OpenOrderError
	switch {
	case errors.As(err, &open):
		return apierrors.ErrConflict.
			WithDetail(err.Error()).
			WithExtension("orderCode", open.Code).
			WithExtension("expiresAt", open.ExpiresAt.UTC().Format(time.RFC3339)), true
	case errors.Is(err, paymentsports.ErrAlreadyEntitled):
		return apierrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, paymentsports.ErrTargetUnavailable),
		errors.Is(err, paymentsports.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, paymentsapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, paymentsapp.ErrInvalidSignature):
		return apierrors.ErrUnauthorized.WithDetail(err.Error()), true
	case errors.Is(err, paymentsports.ErrGatewayUnavailable),
		errors.Is(err, paymentsapp.ErrGrantFailed),
		errors.Is(err, paymentsapp.ErrCodeSpaceExhausted):
		return apierrors.NewUnavailableProblem(err.Error()), true
	case errors.Is(err, paymentsports.ErrGatewayRejected):
		return apierrors.ProblemDetail{
			Type:   apierrors.TypeUnavailable,
			Title:  "Bad Gateway",
			Status: http.StatusBadGateway,
			Detail: err.Error(),
		}, true
	}
	return apierrors.ProblemDetail{}, false
}

func entitlementsProblem(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, entapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, entports.ErrNotFound), errors.Is(err, entports.ErrUnknownTarget):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, entdomain.ErrAlreadyRefunded):
		return apierrors.ErrConflict.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

func usersProblem(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, userapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, userapp.ErrAuthentication):
		// never tell the caller which half of the credentials was wrong
		return apierrors.ErrUnauthorized.WithDetail("invalid credentials"), true
	case errors.Is(err, userports.ErrEmailTaken):
		return apierrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, userports.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

func catalogProblem(err error) (apierrors.ProblemDetail, bool) {
	if errors.Is(err, catalogports.ErrNotFound) {
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}
