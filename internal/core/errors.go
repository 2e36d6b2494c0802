package core

import (
	"errors"
	"fmt"
)

// ValidationError rejects a single entry. The wrapped error is one of the
// sentinel reasons above and can be matched with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Reason is the user-facing explanation.
func (e *ValidationError) Reason() string {
	if e.Err == nil {
		return "invalid value"
	}
	return e.Err.Error()
}

// UnboundReferenceError names an account id that no longer exists. Balance
// events against it are skipped.
type UnboundReferenceError struct {
	Kind string
	ID   string
}

func (e *UnboundReferenceError) Error() string {
	return fmt.Sprintf("%s %q is not bound to any entity", e.Kind, e.ID)
}

// RestoreParseError means a snapshot could not be decoded. Local state is
// never modified when it is returned.
type RestoreParseError struct {
	Err error
}

func (e *RestoreParseError) Error() string {
	return fmt.Sprintf("restore snapshot: %v", e.Err)
}

func (e *RestoreParseError) Unwrap() error { return e.Err }

// TransportError wraps a cloud upload or download failure, including timeouts.
type TransportError struct {
	Backend string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SuggestionProviderError wraps a failed or timed out category suggestion.
type SuggestionProviderError struct {
	Provider string
	Err      error
}

func (e *SuggestionProviderError) Error() string {
	return fmt.Sprintf("suggestion provider %s: %v", e.Provider, e.Err)
}

func (e *SuggestionProviderError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}
