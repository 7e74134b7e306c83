package admin

import (
	"errors"
	"fmt"
)

// ValidationError reports invalid admin input for a single form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ExternalError wraps a failure from a service outside the store, carrying
// the message shown to the admin.
type ExternalError struct {
	Message string
	Err     error
}

func (e *ExternalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

var (
	// ErrDuplicateCategory indicates a category with the same folded name exists.
	ErrDuplicateCategory = errors.New("category already exists")
	// ErrUploadsDisabled indicates no object store is configured.
	ErrUploadsDisabled = errors.New("logo uploads are not configured")
)
