package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
	"github.com/mopd1/LuckyDeck-clean/internal/core/port"
	applogger "github.com/mopd1/LuckyDeck-clean/internal/infra/logger"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/security"
	"github.com/mopd1/LuckyDeck-clean/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided identifier or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrInvalidAccessToken indicates the provided access token is malformed or signature validation failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the provided access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidRefreshToken indicates the provided refresh token failed verification.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

const (
	// maxLoginFailures is the number of consecutive failed logins that
	// trips an account lock.
	maxLoginFailures = 5
	// lockoutDuration is how long a tripped account stays locked.
	lockoutDuration = 30 * time.Minute
)

// LoginResult bundles the artifacts of a successful authentication.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         domain.User
}

// AuthService coordinates authentication flows: credential verification,
// account lockout, and token issuance.
type AuthService struct {
	users  port.UserRepository
	tokens *security.TokenManager
	hasher *security.Hasher
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users port.UserRepository, tokens *security.TokenManager, hasher *security.Hasher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login validates credentials and issues an access/refresh token pair.
// Failed attempts bump the user's failure counter; the fifth consecutive
// failure locks the account for thirty minutes. Lockout is read-then-decide
// with no transactional guarantee; near-simultaneous failures racing past
// the threshold are acceptable here.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("login attempt for unknown identifier",
				zap.String("identifier", applogger.MaskEmail(identifier)))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()
	if err := security.CheckAccountLock(*user, now); err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	ok, err := s.hasher.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= maxLoginFailures {
			deadline := now.Add(lockoutDuration)
			lockedUntil = &deadline
		}
		if recErr := s.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); recErr != nil {
			s.logger.Warn("failed to record login failure",
				zap.Int64("user_id", user.ID), zap.Error(recErr))
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record login success",
			zap.Int64("user_id", user.ID), zap.Error(err))
	}

	access, err := s.tokens.IssueAccessToken(*user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefreshToken(*user)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Sanitized(),
	}, nil
}

// ParseAccessToken validates an access token and returns its claims.
// Expired tokens are reported distinctly so clients know to refresh
// rather than re-login.
func (s *AuthService) ParseAccessToken(_ context.Context, token string) (*security.AccessTokenClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// Refresh verifies a refresh token and issues a new access token. The user
// is re-read from the store so the fresh token carries current email and
// role claims instead of the reduced claim set the refresh token holds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	access, err := s.tokens.IssueAccessToken(*user)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}

	return access, nil
}

// AccessTokenTTL reports the configured access token lifetime, for
// expires_in response fields.
func (s *AuthService) AccessTokenTTL() time.Duration {
	return s.tokens.AccessTokenTTL()
}
