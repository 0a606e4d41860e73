package service

import (
	"errors"
)

var (
	ErrInvalidOTP          = errors.New("invalid or expired code")
	ErrCheckoutNotVerified = errors.New("checkout has not been confirmed with a valid code")
	ErrEmptyCart           = errors.New("nothing to order")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrTotalMismatch       = errors.New("total amount does not match the cart")
	ErrRateLimited         = errors.New("too many requests, try again later")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrInvalidInput        = errors.New("invalid input")
)

// FieldError reports the first invalid field of an input
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Is makes errors.Is(err, ErrInvalidInput) match field errors
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidField(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
