package port

import (
	"context"
	"time"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Update(ctx context.Context, id int64, update domain.UserUpdate) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	RecordLoginFailure(ctx context.Context, id int64, attempts int, lockedUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error
}
