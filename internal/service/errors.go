package service

import (
	"errors"
	"strings"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("transaction not found")
	ErrInvalidState = errors.New("invalid transaction state")
	ErrItemNotFound = errors.New("item not found or not available")

	ErrBorrowerMismatch = errors.New("transaction belongs to another borrower")
)

// ValidationError lists the submission fields that were rejected
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ErrorMessage returns a message suitable for the admin or borrower view
func ErrorMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return "Please check the request: " + strings.Join(ve.Fields, ", ")
	case errors.Is(err, ErrValidation):
		return "Please check the request"
	case errors.Is(err, ErrNotFound):
		return "Borrow transaction not found"
	case errors.Is(err, ErrInvalidState):
		return "The request was already processed"
	case errors.Is(err, ErrItemNotFound):
		return "Barcode does not match an available item"
	case errors.Is(err, ErrBorrowerMismatch):
		return "This request belongs to another borrower"
	default:
		return "Something went wrong, please try again"
	}
}
