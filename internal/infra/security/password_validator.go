package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// PasswordRule checks one aspect of a candidate password.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to the PasswordRule interface.
type PasswordRuleFunc func(password string) error

func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator runs an ordered set of rules and reports the first
// violation.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	return &PasswordValidator{rules: rules}
}

// Rules returns the configured rules in evaluation order.
func (v *PasswordValidator) Rules() []PasswordRule {
	return v.rules
}

func (v *PasswordValidator) Validate(password string) error {
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// DefaultPasswordValidator applies the registration and password change
// policy: minimum length, at least one letter and one digit, and a
// zxcvbn strength floor.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(8),
		RequireLetterRule(),
		RequireDigitRule(),
		RequirePasswordStrengthRule(2),
	)
}

func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len(password) < min {
			return fmt.Errorf("password must be at least %d characters long", min)
		}
		return nil
	})
}

func RequireLetterRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsLetter(r) {
				return nil
			}
		}
		return fmt.Errorf("password must contain at least one letter")
	})
}

func RequireDigitRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return fmt.Errorf("password must contain at least one digit")
	})
}

// RequireDifferentFrom rejects passwords equal to a previous value, case
// insensitively.
func RequireDifferentFrom(previous string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if strings.EqualFold(password, previous) {
			return fmt.Errorf("new password must differ from the current one")
		}
		return nil
	})
}

// RequirePasswordStrengthRule rejects passwords whose zxcvbn score falls
// below minScore (0 weakest, 4 strongest).
func RequirePasswordStrengthRule(minScore int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		result := zxcvbn.PasswordStrength(password, nil)
		if result.Score < minScore {
			return fmt.Errorf("password is too weak, choose a less predictable one")
		}
		return nil
	})
}
