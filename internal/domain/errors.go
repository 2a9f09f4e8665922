package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// ErrConflict is matched by every ConflictError via errors.Is.
var ErrConflict = errors.New("conflict")

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a uniqueness violation: a duplicate page or a second
// job in a scope that already has one running.
type ConflictError struct {
	Resource string
	Key      string
	// ExistingID is the id of the conflicting resource when known.
	ExistingID string
}

func (e *ConflictError) Error() string {
	if e.ExistingID != "" {
		return fmt.Sprintf("%s %q already exists (%s)", e.Resource, e.Key, e.ExistingID)
	}
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Key)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// AlreadyReviewedError is returned when a change entry has left pending.
type AlreadyReviewedError struct {
	ID     string
	Status ReviewStatus
}

func (e *AlreadyReviewedError) Error() string {
	return fmt.Sprintf("change %q already %s", e.ID, e.Status)
}

// ValidationError reports bad caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
