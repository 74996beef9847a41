package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// passwordSymbols is the punctuation set accepted by the symbol rule.
const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules. Rule order is
// part of the contract: the first violation wins, so callers get a
// deterministic reason.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireMixedCaseRule ensures the password contains both uppercase and
// lowercase letters. A single combined rule so both omissions report the
// same reason.
func RequireMixedCaseRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		var hasUpper, hasLower bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			}
		}
		if hasUpper && hasLower {
			return nil
		}
		return &PasswordValidationError{
			Code:    "mixed_case",
			Message: "password must contain both uppercase and lowercase letters",
		}
	})
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "digit",
			Message: "password must contain at least one number",
		}
	})
}

// RequireSymbolRule ensures the password contains at least one character
// from the accepted punctuation set.
func RequireSymbolRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if strings.ContainsAny(password, passwordSymbols) {
			return nil
		}
		return &PasswordValidationError{
			Code:    "symbol",
			Message: "password must contain at least one special character",
		}
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score to reject
// weak-but-compliant passwords.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}

// DefaultPasswordValidator returns the built-in validator: length first,
// then case, digit, symbol.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(8),
		RequireMixedCaseRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
	)
}

// PasswordValidatorWithStrength appends a zxcvbn strength check after the
// baseline rules. Contextual user inputs (username, email) lower the score
// of passwords derived from them.
func PasswordValidatorWithStrength(minScore int, userInputs ...string) *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(8),
		RequireMixedCaseRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
		RequirePasswordStrengthRule(minScore, userInputs...),
	)
}
