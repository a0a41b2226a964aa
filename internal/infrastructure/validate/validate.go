// Package validate provides small composable string validators.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validator is a function that validates a string and returns an error if invalid
type Validator func(value string) error

// Field creates a labeled validator with a custom name for better error messages
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				if !strings.Contains(err.Error(), name) {
					return fmt.Errorf("%s: %w", name, err)
				}
				return err
			}
		}
		return nil
	}
}

// Compose chains multiple validators; first error wins
func Compose(validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}

// Required ensures the field is not blank
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

// MaxLength checks the maximum length in characters
func MaxLength(max int) Validator {
	return func(v string) error {
		if utf8.RuneCountInString(v) > max {
			return fmt.Errorf("must be no more than %d characters", max)
		}
		return nil
	}
}

// Length checks exact length in characters
func Length(exact int) Validator {
	return func(v string) error {
		if utf8.RuneCountInString(v) != exact {
			return fmt.Errorf("must be exactly %d characters", exact)
		}
		return nil
	}
}

// Matches checks if value matches a regex
func Matches(pattern, message string) Validator {
	re := regexp.MustCompile(pattern)
	return func(v string) error {
		if !re.MatchString(v) {
			if message != "" {
				return fmt.Errorf("%s", message)
			}
			return fmt.Errorf("invalid format")
		}
		return nil
	}
}

// Printable rejects control characters (newlines included)
func Printable() Validator {
	return func(v string) error {
		for _, r := range v {
			if r < 0x20 || r == 0x7f {
				return fmt.Errorf("must not contain control characters")
			}
		}
		return nil
	}
}

// HTTPURL accepts absolute http and https URLs only
func HTTPURL() Validator {
	return func(v string) error {
		u, err := url.Parse(strings.TrimSpace(v))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("must be an absolute http(s) URL")
		}
		return nil
	}
}

// Uppercase enforces uppercase
func Uppercase() Validator {
	return func(v string) error {
		if v != strings.ToUpper(v) {
			return fmt.Errorf("must be uppercase")
		}
		return nil
	}
}
