package security

import (
	"fmt"
	"time"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
)

// AccountLockedError reports a temporarily suspended account together with
// the whole minutes remaining until it unlocks.
type AccountLockedError struct {
	RemainingMinutes int
}

// Error implements error for AccountLockedError.
func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked. Try again in %d minutes", e.RemainingMinutes)
}

// CheckAccountLock returns an AccountLockedError when the account is locked
// and the lock deadline is still in the future. Remaining time is the
// ceiling of the millisecond delta in minutes, so a lock expiring in
// 10m00s001ms still reports 11 while exactly 10m reports 10.
func CheckAccountLock(user domain.User, now time.Time) error {
	if !user.AccountLocked || user.AccountLockedUntil == nil {
		return nil
	}

	until := *user.AccountLockedUntil
	if !until.After(now) {
		return nil
	}

	deltaMs := until.Sub(now).Milliseconds()
	remaining := int((deltaMs + 59999) / 60000)

	return &AccountLockedError{RemainingMinutes: remaining}
}
