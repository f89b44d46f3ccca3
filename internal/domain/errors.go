package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across layers.
var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document or document version.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrChunkNotFound signals a missing chunk or chunk set.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrJobNotFound signals a missing job record.
	ErrJobNotFound = errors.New("job not found")
	// ErrValidation signals a schema-level validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrReferentialIntegrity signals a foreign key pointing at an unknown entity.
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	// ErrStateTransition signals an illegal document lifecycle move.
	ErrStateTransition = errors.New("illegal state transition")
	// ErrJobFailure signals a failed extraction or vectorization job.
	ErrJobFailure = errors.New("job failed")
	// ErrVersionConflict signals two updates racing to version the same head.
	ErrVersionConflict = errors.New("version conflict")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrExtractionProviderError signals an extraction provider failure.
	ErrExtractionProviderError = errors.New("extraction provider error")
)

// StateTransitionError wraps ErrStateTransition with the attempted move and
// the specific reason it was rejected.
type StateTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s: %s", ErrStateTransition.Error(), e.From, e.To, e.Reason)
}

func (e *StateTransitionError) Unwrap() error { return ErrStateTransition }

// NewStateTransitionError creates a StateTransitionError.
func NewStateTransitionError(from, to, reason string) error {
	return &StateTransitionError{From: from, To: to, Reason: reason}
}

// VersionConflictError wraps ErrVersionConflict with the current head version.
type VersionConflictError struct {
	CurrentHead int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: current head is version %d", ErrVersionConflict.Error(), e.CurrentHead)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// NewVersionConflictError creates a VersionConflictError.
func NewVersionConflictError(currentHead int) error {
	return &VersionConflictError{CurrentHead: currentHead}
}

// ReferentialIntegrityError wraps ErrReferentialIntegrity with the offending
// field, its value and the entity type it failed to resolve against.
type ReferentialIntegrityError struct {
	Field      string
	Value      string
	TargetType string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s: field %q references unknown %s %q",
		ErrReferentialIntegrity.Error(), e.Field, e.TargetType, e.Value)
}

func (e *ReferentialIntegrityError) Unwrap() error { return ErrReferentialIntegrity }

// NewReferentialIntegrityError creates a ReferentialIntegrityError.
func NewReferentialIntegrityError(field, value, targetType string) error {
	return &ReferentialIntegrityError{Field: field, Value: value, TargetType: targetType}
}
