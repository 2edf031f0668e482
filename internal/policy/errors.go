package policy

import (
	"errors"
	"strings"
)

// ConfigurationError reports an invalid policy or option value. It is fatal:
// the CLI aborts before any manifest is evaluated.
type ConfigurationError struct {
	Errs []error
}

// NewConfigurationError wraps errs, or returns nil when errs is empty.
func NewConfigurationError(errs ...error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Errs: errs}
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *ConfigurationError) Unwrap() []error {
	return e.Errs
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
