package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
	"github.com/mopd1/LuckyDeck-clean/internal/core/port"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/security"
	"github.com/mopd1/LuckyDeck-clean/internal/repository"
)

var (
	// ErrUserNotFound indicates the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser indicates the requested username or email is taken.
	ErrDuplicateUser = errors.New("username or email already exists")
	// ErrSuperadminRequired indicates the operation needs a superadmin
	// actor. The route gate only proves "at least admin"; elevated checks
	// are re-applied here.
	ErrSuperadminRequired = errors.New("superadmin role required")
	// ErrInvalidAdminRole indicates an unknown admin_role value.
	ErrInvalidAdminRole = errors.New("invalid admin role")
	// ErrWeakPassword wraps a password policy violation.
	ErrWeakPassword = errors.New("password does not meet requirements")
)

// Actor identifies the authenticated caller performing an operation.
type Actor struct {
	ID   int64
	Role domain.Role
}

// UpdateUserInput captures the admin-editable fields of a user. Nil means
// "leave unchanged"; ClearAdminRole demotes the target to a plain user.
type UpdateUserInput struct {
	Username       *string
	Email          *string
	IsActive       *bool
	Chips          *int64
	Gems           *int64
	AdminRole      *string
	ClearAdminRole bool
	Password       *string
}

// UserService handles administrative user management.
type UserService struct {
	users     port.UserRepository
	hasher    *security.Hasher
	passwords *security.PasswordValidator
	audit     port.AuditPublisher
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users port.UserRepository, hasher *security.Hasher, passwords *security.PasswordValidator, audit port.AuditPublisher, logger *zap.Logger) *UserService {
	if passwords == nil {
		passwords = security.DefaultPasswordValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:     users,
		hasher:    hasher,
		passwords: passwords,
		audit:     audit,
		logger:    logger,
	}
}

// List returns one page of users matching the filter plus derived
// pagination metadata.
func (s *UserService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, domain.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list users: %w", err)
	}

	for i := range users {
		users[i] = users[i].Sanitized()
	}

	return users, domain.NewPagination(filter.Page, total), nil
}

// Get fetches a single user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// Update applies a partial update to the target user. Changing admin_role
// in either direction requires a superadmin actor; the check runs after the
// existence check and before any mutation.
func (s *UserService) Update(ctx context.Context, actor Actor, id int64, input UpdateUserInput) (*domain.User, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	update := domain.UserUpdate{
		Username: input.Username,
		Email:    input.Email,
		IsActive: input.IsActive,
		Chips:    input.Chips,
		Gems:     input.Gems,
	}

	if input.AdminRole != nil {
		role := strings.TrimSpace(*input.AdminRole)
		if role != "admin" && role != "superadmin" {
			return nil, ErrInvalidAdminRole
		}
		update.AdminRole = &role
	}
	update.ClearRole = input.ClearAdminRole

	if update.TouchesAdminRole() && !actor.Role.AtLeast(domain.RoleSuperadmin) {
		return nil, ErrSuperadminRequired
	}

	if input.Password != nil {
		if err := s.passwords.Validate(*input.Password); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		hash, err := s.hasher.HashPassword(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = &hash
	}

	user, err := s.users.Update(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.publishAudit(ctx, port.AuditEvent{
		Action:   "user.updated",
		ActorID:  actor.ID,
		TargetID: id,
		Detail:   updateDetail(update),
	})

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// Delete removes the target user. Deleting a user with is_admin set
// requires a superadmin actor; a plain admin gets ErrSuperadminRequired
// and the target is left untouched.
func (s *UserService) Delete(ctx context.Context, actor Actor, id int64) error {
	target, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if target.IsAdmin && !actor.Role.AtLeast(domain.RoleSuperadmin) {
		return ErrSuperadminRequired
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.publishAudit(ctx, port.AuditEvent{
		Action:   "user.deleted",
		ActorID:  actor.ID,
		TargetID: id,
		Detail:   map[string]any{"username": target.Username},
	})

	return nil
}

func (s *UserService) publishAudit(ctx context.Context, event port.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish audit event",
			zap.String("action", event.Action), zap.Error(err))
	}
}

func updateDetail(update domain.UserUpdate) map[string]any {
	detail := make(map[string]any)
	if update.Username != nil {
		detail["username"] = *update.Username
	}
	if update.Email != nil {
		detail["email"] = *update.Email
	}
	if update.IsActive != nil {
		detail["is_active"] = *update.IsActive
	}
	if update.Chips != nil {
		detail["chips"] = *update.Chips
	}
	if update.Gems != nil {
		detail["gems"] = *update.Gems
	}
	if update.AdminRole != nil {
		detail["admin_role"] = *update.AdminRole
	}
	if update.ClearRole {
		detail["admin_role"] = nil
	}
	if update.PasswordHash != nil {
		detail["password_changed"] = true
	}
	return detail
}
