package parser

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMessage = errors.New("message has no text")
	ErrTooFewLines  = errors.New("message has too few lines for a bonus drop")
	ErrEmptyCode    = errors.New("code line has no primary code")

	ErrExpiryOutOfRange = errors.New("expiry hours out of range")
)

// MissingFieldError reports a required line shape that no line matched.
type MissingFieldError struct {
	Field Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing %s line", e.Field)
}

// MalformedFieldError reports a line that matched its shape but whose
// value could not be converted.
type MalformedFieldError struct {
	Field Field
	Value string
	Err   error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed %s value %q: %v", e.Field, e.Value, e.Err)
}

func (e *MalformedFieldError) Unwrap() error {
	return e.Err
}
