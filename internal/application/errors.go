package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrAlreadyCommitted is returned when a terminal-state transition is attempted on a committed session.
	ErrAlreadyCommitted = errors.New("application: session already committed")
	// ErrSessionCancelled is returned when an operation targets a cancelled session.
	ErrSessionCancelled = errors.New("application: session is cancelled")
	// ErrNotParticipant is returned when the requester is not part of the group session.
	ErrNotParticipant = errors.New("application: requester is not a participant of the session")
	// ErrInvalidCredentials is returned when authentication material does not match a user.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when an auth session has passed its expiry.
	ErrSessionExpired = errors.New("application: auth session expired")
	// ErrSessionRevoked is returned when an auth session has been revoked.
	ErrSessionRevoked = errors.New("application: auth session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface. Field messages are joined in field
// order so callers see every issue at once.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
