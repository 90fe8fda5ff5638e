package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotReady is returned by every prediction call when startup training failed.
var ErrNotReady = errors.New("prediction service is not ready")

// ValidationKind classifies a request validation failure.
type ValidationKind int

const (
	InvalidNumber ValidationKind = iota
	UnknownCategory
)

// ValidationError is a client-side input problem on a single field.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Value   string
	Allowed []string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case UnknownCategory:
		return fmt.Sprintf("%s: unknown category %q (allowed: %s)", e.Field, e.Value, strings.Join(e.Allowed, ", "))
	default:
		return fmt.Sprintf("%s: %q is not a number", e.Field, e.Value)
	}
}

// FieldMessage is the per-field text shown to API clients.
func (e *ValidationError) FieldMessage() string {
	switch e.Kind {
	case UnknownCategory:
		return fmt.Sprintf("%s must be one of: %s", e.Field, strings.Join(e.Allowed, ", "))
	default:
		return fmt.Sprintf("%s must be a number", e.Field)
	}
}
