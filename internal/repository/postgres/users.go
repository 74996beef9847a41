package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
	"github.com/mopd1/LuckyDeck-clean/internal/core/port"
	"github.com/mopd1/LuckyDeck-clean/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// userColumns are the columns selected for every read. The password hash is
// fetched only by GetByIdentifier, which the login flow needs; list and
// single-record reads never touch it.
var userColumns = []string{
	"id",
	"username",
	"email",
	"chips",
	"gems",
	"is_active",
	"is_admin",
	"admin_role",
	"account_locked",
	"account_locked_until",
	"failed_login_attempts",
	"created_at",
	"last_login",
	"last_free_chips_claim",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// applyFilter compiles the accumulated predicates of a UserFilter onto a
// select builder. Both the page query and the count query share this.
func applyFilter(b squirrel.SelectBuilder, f domain.UserFilter) squirrel.SelectBuilder {
	if f.Username != "" {
		b = b.Where(squirrel.ILike{"username": "%" + f.Username + "%"})
	}
	if f.Email != "" {
		b = b.Where(squirrel.ILike{"email": "%" + f.Email + "%"})
	}

	if f.IsActive != nil {
		b = b.Where(squirrel.Eq{"is_active": *f.IsActive})
	}
	if f.IsAdmin != nil {
		b = b.Where(squirrel.Eq{"is_admin": *f.IsAdmin})
	}
	if f.AccountLocked != nil {
		b = b.Where(squirrel.Eq{"account_locked": *f.AccountLocked})
	}

	if f.Chips.Min != nil {
		b = b.Where(squirrel.GtOrEq{"chips": *f.Chips.Min})
	}
	if f.Chips.Max != nil {
		b = b.Where(squirrel.LtOrEq{"chips": *f.Chips.Max})
	}
	if f.Gems.Min != nil {
		b = b.Where(squirrel.GtOrEq{"gems": *f.Gems.Min})
	}
	if f.Gems.Max != nil {
		b = b.Where(squirrel.LtOrEq{"gems": *f.Gems.Max})
	}

	ranges := []struct {
		column string
		value  domain.TimeRange
	}{
		{"created_at", f.CreatedAt},
		{"last_login", f.LastLogin},
		{"last_free_chips_claim", f.LastFreeChipsClaim},
	}
	for _, r := range ranges {
		if r.value.Start != nil {
			b = b.Where(squirrel.GtOrEq{r.column: *r.value.Start})
		}
		if r.value.End != nil {
			b = b.Where(squirrel.LtOrEq{r.column: *r.value.End})
		}
	}

	return b
}

// List returns one page of users matching the filter plus the total count
// of matching rows.
func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int64, error) {
	sortBy := filter.SortBy
	if !domain.ValidSortField(sortBy) {
		sortBy = domain.SortByCreatedAt
	}
	direction := filter.Direction
	if direction != domain.SortAsc {
		direction = domain.SortDesc
	}

	countSQL, countArgs, err := applyFilter(r.builder.Select("COUNT(*)").From("users"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users sql: %w", err)
	}

	var total int64
	if err := r.exec.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	pageSQL, pageArgs, err := applyFilter(r.builder.Select(userColumns...).From("users"), filter).
		OrderBy(fmt.Sprintf("%s %s", sortBy, direction)).
		Limit(domain.PageSize).
		Offset(filter.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, domain.PageSize)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

// GetByID retrieves a user by identifier. The password hash column is not
// selected.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}

// GetByIdentifier retrieves a user by username or email, including the
// password hash. Used only by the login flow; callers must sanitize before
// serializing.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	columns := append(append([]string{}, userColumns...), "password_hash")

	stmt, args, err := r.builder.
		Select(columns...).
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by identifier sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		user       domain.User
		adminRole  *string
		lockedTill *time.Time
		lastLogin  *time.Time
		lastClaim  *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Chips,
		&user.Gems,
		&user.IsActive,
		&user.IsAdmin,
		&adminRole,
		&user.AccountLocked,
		&lockedTill,
		&user.FailedLoginAttempts,
		&user.CreatedAt,
		&lastLogin,
		&lastClaim,
		&user.PasswordHash,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user by identifier: %w", err)
	}

	user.AdminRole = adminRole
	user.AccountLockedUntil = lockedTill
	user.LastLogin = lastLogin
	user.LastFreeChipsClaim = lastClaim

	return &user, nil
}

// Update applies a partial update and returns the refreshed record.
// admin_role changes keep is_admin consistent: a role implies is_admin,
// clearing the role clears it.
func (r *UserRepository) Update(ctx context.Context, id int64, update domain.UserUpdate) (*domain.User, error) {
	if update.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	b := r.builder.Update("users")

	if update.Username != nil {
		b = b.Set("username", *update.Username)
	}
	if update.Email != nil {
		b = b.Set("email", *update.Email)
	}
	if update.IsActive != nil {
		b = b.Set("is_active", *update.IsActive)
	}
	if update.Chips != nil {
		b = b.Set("chips", *update.Chips)
	}
	if update.Gems != nil {
		b = b.Set("gems", *update.Gems)
	}
	if update.AdminRole != nil {
		b = b.Set("admin_role", *update.AdminRole).Set("is_admin", true)
	} else if update.ClearRole {
		b = b.Set("admin_role", nil).Set("is_admin", false)
	}
	if update.PasswordHash != nil {
		b = b.Set("password_hash", *update.PasswordHash)
	}

	stmt, args, err := b.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

// Delete removes a user row.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	stmt, args, err := r.builder.
		Delete("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLoginFailure stores the bumped attempt counter and, when lockedUntil
// is non-nil, locks the account until that deadline.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id int64, attempts int, lockedUntil *time.Time) error {
	b := r.builder.Update("users").Set("failed_login_attempts", attempts)
	if lockedUntil != nil {
		b = b.Set("account_locked", true).Set("account_locked_until", *lockedUntil)
	}

	stmt, args, err := b.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build login failure sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLoginSuccess resets the failure counter, clears any lock, and
// stamps last_login.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	stmt, args, err := r.builder.
		Update("users").
		Set("failed_login_attempts", 0).
		Set("account_locked", false).
		Set("account_locked_until", nil).
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build login success sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user       domain.User
		adminRole  *string
		lockedTill *time.Time
		lastLogin  *time.Time
		lastClaim  *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Chips,
		&user.Gems,
		&user.IsActive,
		&user.IsAdmin,
		&adminRole,
		&user.AccountLocked,
		&lockedTill,
		&user.FailedLoginAttempts,
		&user.CreatedAt,
		&lastLogin,
		&lastClaim,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}

	user.AdminRole = adminRole
	user.AccountLockedUntil = lockedTill
	user.LastLogin = lastLogin
	user.LastFreeChipsClaim = lastClaim

	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ port.UserRepository = (*UserRepository)(nil)
