package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Apurer/course-marketplace-api/internal/domains/users/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/users/ports"
	"github.com/Apurer/course-marketplace-api/internal/platform/auth"
)

// Service exposes buyer account use cases.
type Service struct {
	repo     ports.Repository
	sessions ports.SessionStore
	tokens   *auth.Issuer
	hashCost int
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo ports.Repository, sessions ports.SessionStore, tokens *auth.Issuer, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if err := domain.ValidatePassword(in.Password); err != nil {
		return nil, mapError(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := domain.NewUser(s.newID(), in.Email, in.DisplayName, string(hash), s.now().UTC())
	if err != nil {
		return nil, mapError(err)
	}
	return s.repo.Create(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, mapError(ports.ErrInvalidCredentials)
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, mapError(ports.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, mapError(ports.ErrInvalidCredentials)
	}

	sessionID := s.newID()
	token, expires, err := s.tokens.Issue(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}
	session := domain.Session{ID: sessionID, UserID: user.ID, CreatedAt: s.now().UTC(), ExpiresAt: expires.UTC()}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return &ports.LoginResult{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate verifies the token signature and that its session was not revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (*ports.Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, mapError(err)
	}
	session, err := s.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		return nil, mapError(err)
	}
	if session.UserID != claims.BuyerID || !session.Active(s.now()) {
		return nil, mapError(ports.ErrSessionNotFound)
	}
	return &ports.Principal{BuyerID: claims.BuyerID, Email: claims.Email, SessionID: session.ID}, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

var _ ports.Service = (*Service)(nil)
