package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrInvalidEmail  = errors.New("email is invalid")
	ErrEmptyPassword = errors.New("password is required")
	ErrWeakPassword  = errors.New("password must be at least 8 characters")
	ErrEmptyName     = errors.New("display name is required")
	ErrInvalidUserID = errors.New("user id is required")
)

const (
	MinPasswordLength  = 8
	maxDisplayNameSize = 120
)

// User is a buyer account. Emails are stored lower-cased and are unique.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser validates the profile fields. The password hash is supplied by the caller.
func NewUser(id, email, displayName, passwordHash string, now time.Time) (*User, error) {
	user := &User{ID: strings.TrimSpace(id), PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	if err := user.SetEmail(email); err != nil {
		return nil, err
	}
	if err := user.SetDisplayName(displayName); err != nil {
		return nil, err
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetEmail trims, lower-cases and validates the address.
func (u *User) SetEmail(email string) error {
	email = NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	u.Email = email
	return nil
}

func (u *User) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxDisplayNameSize {
		name = name[:maxDisplayNameSize]
	}
	u.DisplayName = name
	return nil
}

// ValidatePassword checks a plain-text password before it is hashed.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrEmptyPassword
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Validate re-applies core invariants for persistence.
func (u *User) Validate() error {
	if u.ID == "" {
		return ErrInvalidUserID
	}
	if err := u.SetEmail(u.Email); err != nil {
		return err
	}
	if err := u.SetDisplayName(u.DisplayName); err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return ErrEmptyPassword
	}
	return nil
}
