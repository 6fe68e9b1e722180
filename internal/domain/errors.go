package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a lifecycle transition is requested
// from a state that does not allow it.
var ErrInvalidTransition = errors.New("invalid task state transition")

// ConfigError reports a missing or malformed field in a task descriptor
// document, or a misuse of the descriptor (such as a data parameter with no
// download directory).
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("task config: %s", e.Reason)
	}
	return fmt.Sprintf("task config: field %q %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError for the given field. Field may be
// empty for document-level problems.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}
