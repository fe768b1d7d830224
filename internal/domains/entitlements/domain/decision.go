package domain

// DenyReason explains a refused access check.
type DenyReason string

const (
	ReasonNoEntitlement     DenyReason = "no_entitlement"
	ReasonTargetUnavailable DenyReason = "target_unavailable"
)

// Decision is the guard's answer. A deny is a value, not an error.
type Decision struct {
	Allowed    bool
	Reason     DenyReason
	Enrollment *Enrollment
}

func Allow(e *Enrollment) Decision { return Decision{Allowed: true, Enrollment: e} }

func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }
