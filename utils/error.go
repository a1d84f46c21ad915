package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the service
type ErrorKind string

const (
	ConnectionError    ErrorKind = "Connection"
	ConfigError        ErrorKind = "Config"
	TypeMappingError   ErrorKind = "TypeMapping"
	SQLGenerationError ErrorKind = "SqlGeneration"
	ValidationError    ErrorKind = "Validation"
	NotFoundError      ErrorKind = "NotFound"
	DatabaseError      ErrorKind = "Database"
	EncryptionError    ErrorKind = "Encryption"
)

// Error is a classified error carrying a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a classified error
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping it reachable through errors.Is/As
func Wrap(kind ErrorKind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether any error in err's chain is classified as kind
func IsKind(err error, kind ErrorKind) bool {
	var classified *Error
	for err != nil {
		if !errors.As(err, &classified) {
			return false
		}
		if classified.Kind == kind {
			return true
		}
		err = classified.Err
	}
	return false
}

// KindOf returns the outermost classification of err, empty when unclassified
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}
