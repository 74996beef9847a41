package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidatorOrder(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
		wantCode string
	}{
		{name: "too short wins first", password: "Short1!", wantCode: "min_length"},
		{name: "short without anything still reports length", password: "short1!", wantCode: "min_length"},
		{name: "missing uppercase", password: "alllowercase1!", wantCode: "mixed_case"},
		{name: "missing lowercase", password: "ALLUPPERCASE1!", wantCode: "mixed_case"},
		{name: "missing digit", password: "NoDigitsHere!", wantCode: "digit"},
		{name: "missing symbol", password: "Longenough1", wantCode: "symbol"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if err == nil {
				t.Fatalf("expected violation %q, got nil", tc.wantCode)
			}

			var violation *PasswordValidationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected PasswordValidationError, got %T", err)
			}
			if violation.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, violation.Code)
			}
		})
	}
}

func TestDefaultPasswordValidatorAcceptsCompliantPassword(t *testing.T) {
	validator := DefaultPasswordValidator()

	for _, password := range []string{"Valid1Pass!", "Another9{ok}", `Quote"Test7`} {
		if err := validator.Validate(password); err != nil {
			t.Fatalf("expected %q to pass, got %v", password, err)
		}
	}
}

func TestRequireSymbolRuleAcceptsEntireSet(t *testing.T) {
	rule := RequireSymbolRule()

	for _, symbol := range passwordSymbols {
		password := "Password1" + string(symbol)
		if err := rule.Validate(password); err != nil {
			t.Fatalf("expected symbol %q to satisfy rule, got %v", symbol, err)
		}
	}

	if err := rule.Validate("Password1-"); err == nil {
		t.Fatal("expected hyphen to be rejected, it is outside the accepted set")
	}
}

func TestPasswordValidatorWithStrengthRejectsWeakPasswords(t *testing.T) {
	validator := PasswordValidatorWithStrength(3, "johndoe", "john@example.com")

	err := validator.Validate("Passw0rd!")
	if err == nil {
		t.Fatal("expected a weak common password to be rejected")
	}

	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %T", err)
	}
	if violation.Code != "weak_password" {
		t.Fatalf("expected code weak_password, got %q", violation.Code)
	}
}

func TestNilValidatorReportsConfigurationError(t *testing.T) {
	var validator *PasswordValidator
	if err := validator.Validate("whatever"); err == nil {
		t.Fatal("expected nil validator to fail closed")
	}
}
