// Package identity provides the identity services behind the session gate:
// a local provider backed by SQLite and a Firebase Auth REST client.
package identity

import (
	"errors"
	"fmt"
)

// Reason is the cause of a failed identity operation
type Reason int

const (
	ReasonOther Reason = iota
	ReasonEmailInUse
	ReasonInvalidEmail
	ReasonWeakPassword
	ReasonUserNotFound
	ReasonWrongPassword
)

func (r Reason) String() string {
	switch r {
	case ReasonEmailInUse:
		return "emailInUse"
	case ReasonInvalidEmail:
		return "invalidEmail"
	case ReasonWeakPassword:
		return "weakPassword"
	case ReasonUserNotFound:
		return "userNotFound"
	case ReasonWrongPassword:
		return "wrongPassword"
	default:
		return "other"
	}
}

// Error is a failed identity operation
type Error struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("identity %s: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the reason of err. Errors that are not identity errors
// are ReasonOther.
func ReasonOf(err error) Reason {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return ReasonOther
}

func fail(op string, reason Reason, err error) error {
	return &Error{Op: op, Reason: reason, Err: err}
}
