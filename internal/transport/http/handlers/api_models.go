package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
	"github.com/mopd1/LuckyDeck-clean/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserPayload is the outward view of a user account. The password hash
// never appears here.
type UserPayload struct {
	ID                  int64      `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	Chips               int64      `json:"chips"`
	Gems                int64      `json:"gems"`
	IsActive            bool       `json:"is_active"`
	IsAdmin             bool       `json:"is_admin"`
	AdminRole           *string    `json:"admin_role"`
	AccountLocked       bool       `json:"account_locked"`
	AccountLockedUntil  *time.Time `json:"account_locked_until,omitempty"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLogin           *time.Time `json:"last_login"`
	LastFreeChipsClaim  *time.Time `json:"last_free_chips_claim"`
}

// AuthLoginRequest defines the payload for the login endpoint. Identifier
// accepts either a username or an email address.
type AuthLoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// AuthLoginResponse describes the response returned for a successful login.
type AuthLoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         UserPayload `json:"user"`
}

// TokenRefreshRequest represents the payload to refresh an access token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenRefreshResponse contains the token issued by the refresh endpoint.
type TokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// UserListResponse wraps one page of users plus pagination metadata.
type UserListResponse struct {
	Users      []UserPayload     `json:"users"`
	Pagination domain.Pagination `json:"pagination"`
}

// UserUpdateRequest defines the partial-update payload for a user. Absent
// fields are left unchanged; admin_role set to JSON null clears the role.
type UserUpdateRequest struct {
	Username  *string        `json:"username,omitempty"`
	Email     *string        `json:"email,omitempty"`
	IsActive  *bool          `json:"is_active,omitempty"`
	Chips     *int64         `json:"chips,omitempty"`
	Gems      *int64         `json:"gems,omitempty"`
	AdminRole NullableString `json:"admin_role,omitempty"`
	Password  *string        `json:"password,omitempty"`
}

// NullableString distinguishes an absent JSON field from an explicit null.
// Set is true whenever the key appeared in the payload; Value stays nil for
// an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records presence and decodes the optional string value.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserPayload converts a domain user to its API representation.
func newUserPayload(user domain.User) UserPayload {
	return UserPayload{
		ID:                  user.ID,
		Username:            user.Username,
		Email:               user.Email,
		Chips:               user.Chips,
		Gems:                user.Gems,
		IsActive:            user.IsActive,
		IsAdmin:             user.IsAdmin,
		AdminRole:           user.AdminRole,
		AccountLocked:       user.AccountLocked,
		AccountLockedUntil:  user.AccountLockedUntil,
		FailedLoginAttempts: user.FailedLoginAttempts,
		CreatedAt:           user.CreatedAt,
		LastLogin:           user.LastLogin,
		LastFreeChipsClaim:  user.LastFreeChipsClaim,
	}
}

func newUserListResponse(users []domain.User, pagination domain.Pagination) UserListResponse {
	payloads := make([]UserPayload, 0, len(users))
	for _, user := range users {
		payloads = append(payloads, newUserPayload(user))
	}
	return UserListResponse{Users: payloads, Pagination: pagination}
}
