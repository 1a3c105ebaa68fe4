package buildconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEnvironment indicates an environment selector other than development or production
	ErrInvalidEnvironment = errors.New("invalid environment")
	// ErrMissingField indicates a required descriptor field is unset
	ErrMissingField = errors.New("required field is unset")
	// ErrInvalidTransform indicates a malformed transform rule
	ErrInvalidTransform = errors.New("invalid transform rule")
	// ErrUnknownVariant indicates a named build variant that is not declared
	ErrUnknownVariant = errors.New("unknown build variant")
)

// ConfigurationError is returned for every resolution or validation failure.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(field, value string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Err: err}
}
