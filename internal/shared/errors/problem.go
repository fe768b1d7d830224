// Package errors renders failures as RFC 7807 problem documents.
package errors

import "net/http"

// ProblemDetail is the body of every non-2xx marketplace response.
// Machine-readable extras (reason, orderCode, retryable) sit under Extensions.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail == "" {
		return p.Title
	}
	return p.Title + ": " + p.Detail
}

// WithDetail copies p with an occurrence-specific message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension copies p and sets one extension member. The receiver's map is never mutated,
// so the package templates stay clean.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[key] = value
	p.Extensions = ext
	return p
}

// Retryable reports whether the client may repeat the request unchanged.
func (p ProblemDetail) Retryable() bool {
	retry, _ := p.Extensions["retryable"].(bool)
	return retry
}

// Problem type references.
const (
	TypeValidation   = "/problems/validation-error"
	TypeNotFound     = "/problems/not-found"
	TypeConflict     = "/problems/conflict"
	TypeInternal     = "/problems/internal-error"
	TypeUnauthorized = "/problems/unauthorized"
	TypeForbidden    = "/problems/forbidden"
	TypeBadRequest   = "/problems/bad-request"
	TypeUnavailable  = "/problems/service-unavailable"
)

func template(kind string, status int) ProblemDetail {
	return ProblemDetail{Type: kind, Title: titleFor(status), Status: status}
}

func titleFor(status int) string {
	if status == http.StatusNotFound {
		return "Resource Not Found"
	}
	return http.StatusText(status)
}

var (
	ErrNotFound     = template(TypeNotFound, http.StatusNotFound)
	ErrBadRequest   = template(TypeBadRequest, http.StatusBadRequest)
	ErrConflict     = template(TypeConflict, http.StatusConflict)
	ErrInternal     = template(TypeInternal, http.StatusInternalServerError)
	ErrUnauthorized = template(TypeUnauthorized, http.StatusUnauthorized)
	ErrForbidden    = template(TypeForbidden, http.StatusForbidden)
	ErrUnavailable  = template(TypeUnavailable, http.StatusServiceUnavailable)

	// ErrValidation shares 400 with ErrBadRequest but names a failed field rule.
	ErrValidation = ProblemDetail{Type: TypeValidation, Title: "Validation Error", Status: http.StatusBadRequest}
)

// NewUnavailableProblem is a 503 the caller (or the gateway redelivering a webhook) should retry.
func NewUnavailableProblem(detail string) ProblemDetail {
	return ErrUnavailable.WithDetail(detail).WithExtension("retryable", true)
}

// NewForbiddenProblem carries the guard's deny reason.
func NewForbiddenProblem(reason string) ProblemDetail {
	return ErrForbidden.
		WithDetail("access denied: " + reason).
		WithExtension("reason", reason)
}
