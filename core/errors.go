package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a requested record is absent (or soft-deleted).
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (err NotFoundError) Error() string {
	return err.message
}

// ExternalServiceError wraps a failure of a backing service (database, email or chat channel).
type ExternalServiceError struct {
	Service string
	Err     error
}

func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

func (err ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", err.Service, err.Err)
}

func (err ExternalServiceError) Unwrap() error { return err.Err }

// ConfigurationError is returned when a required setting is missing or invalid.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func NewConfigurationError(setting, reason string) error {
	return &ConfigurationError{Setting: setting, Reason: reason}
}

func (err ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %q: %s", err.Setting, err.Reason)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}
