package soundarchive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error taxonomy. Every error returned by the service wraps one of these.
var (
	// ErrUnauthenticated indicates a missing or unverifiable credential where one is required
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates an authenticated caller without the required role
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput indicates a malformed request, oversize or mistyped file, or a self-protection violation
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable indicates the identity, storage or database backend failed
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPartialFailure indicates a multi-part operation stopped after some parts were written
	ErrPartialFailure = errors.New("partial failure")

	// ErrNotFound indicates a record or object does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")

	// ErrAdminUnavailable indicates admin features are disabled because no privileged key is configured
	ErrAdminUnavailable = errors.New("admin features unavailable")
)

// AuthError is returned by the role gate.
type AuthError struct {
	Principal Principal
	Required  Requirement
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("access denied (role %s, requires %s): %v", e.Principal.Role, e.Required, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ValidationError describes a rejected input field or file part.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// UploadError reports the part that stopped an upload and any objects left
// behind without a record.
type UploadError struct {
	Part         string
	OrphanedKeys []string
	Err          error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload failed at %s: %v", e.Part, e.Err)
	if len(e.OrphanedKeys) > 0 {
		msg += fmt.Sprintf(" (orphaned: %s)", strings.Join(e.OrphanedKeys, ", "))
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Is lets callers match ErrPartialFailure when earlier parts were already written.
func (e *UploadError) Is(target error) bool {
	return target == ErrPartialFailure && len(e.OrphanedKeys) > 0
}

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID uuid.UUID
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// upstream wraps err as ErrUpstreamUnavailable unless it already carries a
// taxonomy error.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrInvalidInput, ErrForbidden, ErrUnauthenticated, ErrUpstreamUnavailable} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}
