package ports

import (
	"context"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/users/domain"
)

type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Principal is the authenticated buyer behind a request.
type Principal struct {
	BuyerID   string
	Email     string
	SessionID string
}

// Service exposes buyer account use cases to adapters.
type Service interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*Principal, error)
	Logout(ctx context.Context, sessionID string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
