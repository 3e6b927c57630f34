package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every business rule violation reported by the service.
	ErrValidation = errors.New("planner: validation failed")
	// ErrOptimisticLock indicates the entity changed after the caller last read it.
	ErrOptimisticLock = errors.New("planner: optimistic lock conflict")
	// ErrProjectNotFound indicates that the parent project of a task operation does not exist.
	ErrProjectNotFound = errors.New("planner: project not found")
	// ErrHistoryUnavailable is reported by history stores whose backing table is missing.
	ErrHistoryUnavailable = errors.New("planner: task history storage unavailable")

	errMissingStore      = errors.New("store is required")
	errMissingIDProvider = errors.New("id provider is required")
	errTaskVanished      = errors.New("task disappeared inside its own transaction")
)

// ValidationError describes a request that violates a business rule.
type ValidationError struct {
	reason string
}

func newValidationError(format string, args ...any) error {
	return &ValidationError{reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.reason
}

// Reason returns the human readable rule violation.
func (e *ValidationError) Reason() string {
	return e.reason
}

// Is lets errors.Is(err, ErrValidation) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OptimisticLockError reports a concurrent modification of a project, user or task.
type OptimisticLockError struct {
	Entity string
	ID     string
}

func newOptimisticLockError(entity, id string) error {
	return &OptimisticLockError{Entity: entity, ID: id}
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("%s %s was updated by another request; reload and try again", e.Entity, e.ID)
}

// Is lets errors.Is(err, ErrOptimisticLock) match any lock conflict.
func (e *OptimisticLockError) Is(target error) bool {
	return target == ErrOptimisticLock
}

// ServiceError wraps infrastructure failures with a stable "operation.reason" code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func projectNotFound(projectID string) error {
	return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
}
