// Package purchase holds the identity of something a buyer can pay for.
package purchase

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates purchasable targets.
type Kind string

const (
	KindCourse Kind = "course"
	KindLevel  Kind = "level"
)

var (
	ErrInvalidKind = errors.New("target kind must be course or level")
	ErrEmptyID     = errors.New("target id is required")
)

// Target identifies a course or a level package.
type Target struct {
	Kind Kind
	ID   string
}

// NewTarget trims and validates the identity. Level codes are upper case, so "b1" and "B1"
// name the same target.
func NewTarget(kind, id string) (Target, error) {
	t := Target{Kind: Kind(strings.ToLower(strings.TrimSpace(kind))), ID: strings.TrimSpace(id)}
	if t.Kind == KindLevel {
		t.ID = strings.ToUpper(t.ID)
	}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// Course is shorthand for a course target.
func Course(id string) Target { return Target{Kind: KindCourse, ID: id} }

// Level is shorthand for a level package target.
func Level(code string) Target {
	return Target{Kind: KindLevel, ID: strings.ToUpper(strings.TrimSpace(code))}
}

func (t Target) Validate() error {
	switch t.Kind {
	case KindCourse, KindLevel:
	default:
		return ErrInvalidKind
	}
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	return nil
}

// Reference renders the gateway-opaque client reference for the target.
func (t Target) Reference() string {
	prefix := "crs"
	if t.Kind == KindLevel {
		prefix = "lvl"
	}
	ref := fmt.Sprintf("%s-%s", prefix, t.ID)
	// gateways cap free-text fields at 25 characters
	if len(ref) > 25 {
		ref = ref[:25]
	}
	return ref
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID
}
