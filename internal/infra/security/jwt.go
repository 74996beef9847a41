package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
)

var (
	// ErrInvalidToken indicates the token is malformed, carries a bad
	// signature, or was signed with the wrong key.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken indicates the token is past its expiry. Kept distinct
	// from ErrInvalidToken so callers can prompt a refresh instead of a
	// re-login.
	ErrExpiredToken = errors.New("jwt: token expired")
)

// AccessTokenClaims carries the identity and role context embedded in
// access tokens.
type AccessTokenClaims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims carries only the user id; refresh tokens prove
// nothing beyond "this user may request a new access token".
type RefreshTokenClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access and refresh tokens with two
// independent HMAC secrets. The secrets must differ so a leaked refresh
// secret cannot mint access tokens.
type TokenManager struct {
	accessSecret    []byte
	refreshSecret   []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	issuer          string
	now             func() time.Time
}

const (
	defaultAccessTokenTTL  = 24 * time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// NewTokenManager constructs a TokenManager.
func NewTokenManager(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(accessSecret) == "" {
		return nil, fmt.Errorf("jwt: access secret is required")
	}
	if strings.TrimSpace(refreshSecret) == "" {
		return nil, fmt.Errorf("jwt: refresh secret is required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("jwt: access and refresh secrets must differ")
	}

	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	return &TokenManager{
		accessSecret:    []byte(accessSecret),
		refreshSecret:   []byte(refreshSecret),
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		issuer:          issuer,
		now:             time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

// AccessTokenTTL reports the configured access token lifetime.
func (m *TokenManager) AccessTokenTTL() time.Duration {
	return m.accessTokenTTL
}

// IssueAccessToken signs an access token embedding id, email, and the
// effective role of the user.
func (m *TokenManager) IssueAccessToken(user domain.User) (string, error) {
	now := m.now().UTC()

	claims := AccessTokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign access token: %w", err)
	}

	return signed, nil
}

// IssueRefreshToken signs a refresh token embedding only the user id.
func (m *TokenManager) IssueRefreshToken(user domain.User) (string, error) {
	now := m.now().UTC()

	claims := RefreshTokenClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign refresh token: %w", err)
	}

	return signed, nil
}

// VerifyAccessToken validates signature and expiry of an access token.
func (m *TokenManager) VerifyAccessToken(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := m.parse(token, claims, m.accessSecret); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken validates signature and expiry of a refresh token.
func (m *TokenManager) VerifyRefreshToken(token string) (*RefreshTokenClaims, error) {
	claims := &RefreshTokenClaims{}
	if err := m.parse(token, claims, m.refreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenManager) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}

	if parsed == nil || !parsed.Valid {
		return ErrInvalidToken
	}

	return nil
}
