package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds surfaced to the user. Every failure of a store, form or gate
// operation matches exactly one of the first four.
var (
	ErrNetwork    = errors.New("network failure")
	ErrBackend    = errors.New("backend error")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("record not found")
)

// Lifecycle and state machine errors.
var (
	ErrBusy            = errors.New("another request is in flight")
	ErrClosed          = errors.New("session is closed")
	ErrNotSupported    = errors.New("operation not supported for resource")
	ErrSessionActive   = errors.New("form session already open")
	ErrNoSession       = errors.New("no form session open")
	ErrGateBusy        = errors.New("a deletion is already awaiting confirmation")
	ErrGateIdle        = errors.New("no deletion awaiting confirmation")
	ErrInvalidID       = errors.New("invalid record ID")
	ErrUnknownResource = errors.New("unknown resource")
	ErrUnauthorized    = errors.New("not authenticated")
)

// NetworkError reports a request that did not reach the backend or got no
// response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrNetwork, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

//nolint:errorlint
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// BackendError reports a non-success status. Message is the human-readable
// text from the response body, when there was one.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error: status %d", e.Status)
	}
	return fmt.Sprintf("backend error: status %d: %s", e.Status, e.Message)
}

//nolint:errorlint
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrBackend:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// FieldError names one violated field constraint.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every field that failed local checks.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

//nolint:errorlint
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Error kind labels returned by Kind.
const (
	KindNetwork    = "network"
	KindBackend    = "backend"
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindOther      = "other"
)

// Kind classifies err into the error taxonomy. NotFound is checked before
// Backend because a 404 matches both.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrBackend):
		return KindBackend
	default:
		return KindOther
	}
}

// Message returns the text to show the user for err: the backend message when
// the backend sent one, otherwise the error string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return err.Error()
}
