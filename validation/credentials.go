// Package validation checks sign-in credentials, catalogue ids and search
// input before they reach an external service.
package validation

import (
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/giygas/medisearch/interfaces"
)

// MinPasswordLength is the shortest accepted password, in characters
const MinPasswordLength = 6

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Field names used in FieldError
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// Kind separates an empty field from a malformed one
type Kind int

const (
	KindRequired Kind = iota + 1
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindRequired:
		return "required"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FieldError is a local, field-scoped validation failure
type FieldError struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"-"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// IsRequired reports whether err is a FieldError for an empty field
func IsRequired(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) && fe.Kind == KindRequired
}

// ValidateEmail checks the local@domain.tld shape
func ValidateEmail(email string) error {
	if email == "" {
		return &FieldError{Field: FieldEmail, Kind: KindRequired, Message: "Email is required"}
	}
	if !emailRegex.MatchString(email) {
		return &FieldError{Field: FieldEmail, Kind: KindMalformed, Message: "Please enter a valid email address"}
	}
	return nil
}

// ValidatePassword checks the minimum length
func ValidatePassword(password string) error {
	if password == "" {
		return &FieldError{Field: FieldPassword, Kind: KindRequired, Message: "Password is required"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &FieldError{Field: FieldPassword, Kind: KindMalformed, Message: "Password must be at least 6 characters"}
	}
	return nil
}

// CredentialValidatorImpl implements the interfaces.CredentialValidator interface
type CredentialValidatorImpl struct{}

// NewCredentialValidator creates a new credential validator
func NewCredentialValidator() interfaces.CredentialValidator {
	return &CredentialValidatorImpl{}
}

func (v *CredentialValidatorImpl) ValidateEmail(email string) error {
	return ValidateEmail(email)
}

func (v *CredentialValidatorImpl) ValidatePassword(password string) error {
	return ValidatePassword(password)
}
