package domain

import "time"

// Role enumerates the privilege tiers a caller can hold. The numeric
// ordering matters: comparisons must go through AtLeast rather than raw
// string equality.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
	RoleSuperadmin
)

// ParseRole maps the wire representation of a role to the ordered enum.
// Unknown values collapse to RoleUser, the least privileged tier.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "superadmin":
		return RoleSuperadmin
	default:
		return RoleUser
	}
}

// String returns the wire representation of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSuperadmin:
		return "superadmin"
	default:
		return "user"
	}
}

// AtLeast reports whether the role grants at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// User mirrors the persisted representation in the users table.
// PasswordHash carries json:"-" so no handler can leak it by accident;
// repositories additionally never select it for list responses.
type User struct {
	ID                  int64      `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Chips               int64      `json:"chips"`
	Gems                int64      `json:"gems"`
	IsActive            bool       `json:"is_active"`
	IsAdmin             bool       `json:"is_admin"`
	AdminRole           *string    `json:"admin_role"`
	AccountLocked       bool       `json:"account_locked"`
	AccountLockedUntil  *time.Time `json:"account_locked_until"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLogin           *time.Time `json:"last_login"`
	LastFreeChipsClaim  *time.Time `json:"last_free_chips_claim"`
}

// Role resolves the effective role for token issuance: admin_role when the
// account carries one, RoleUser otherwise.
func (u User) Role() Role {
	if u.AdminRole == nil {
		return RoleUser
	}
	return ParseRole(*u.AdminRole)
}

// Sanitized returns a copy safe to serialize outward.
func (u User) Sanitized() User {
	copy := u
	copy.PasswordHash = ""
	return copy
}

// UserUpdate captures a partial update to a user record. Nil fields are
// left untouched by the repository.
type UserUpdate struct {
	Username     *string
	Email        *string
	IsActive     *bool
	Chips        *int64
	Gems         *int64
	AdminRole    *string
	ClearRole    bool
	PasswordHash *string
}

// IsEmpty reports whether the update would change nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.IsActive == nil &&
		u.Chips == nil && u.Gems == nil && u.AdminRole == nil &&
		!u.ClearRole && u.PasswordHash == nil
}

// TouchesAdminRole reports whether the update would set or clear admin_role.
// Such updates require a superadmin actor.
func (u UserUpdate) TouchesAdminRole() bool {
	return u.AdminRole != nil || u.ClearRole
}
