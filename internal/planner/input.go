package planner

import "time"

// Patch carries one optional field of a partial update. The zero value means "absent".
type Patch[T any] struct {
	value   T
	present bool
}

// Set returns a present patch holding value.
func Set[T any](value T) Patch[T] {
	return Patch[T]{value: value, present: true}
}

// Get returns the value and whether the field was supplied.
func (p Patch[T]) Get() (T, bool) {
	return p.value, p.present
}

// CreateProjectInput is a validated project creation payload.
type CreateProjectInput struct {
	Name string
}

// UpdateProjectInput is a partial project update guarded by the caller's last known token.
type UpdateProjectInput struct {
	UpdatedAt time.Time
	Name      Patch[string]
}

// CreateUserInput is a validated user creation payload.
type CreateUserInput struct {
	Name string
}

// UpdateUserInput is a partial user update guarded by the caller's last known token.
type UpdateUserInput struct {
	UpdatedAt time.Time
	Name      Patch[string]
}

// CreateTaskInput is a validated task creation payload. A nil SortOrder appends the task.
type CreateTaskInput struct {
	Title             string
	Note              string
	StartDate         string
	EndDate           string
	Progress          int
	SortOrder         *int
	AssigneeIDs       []string
	PredecessorTaskID *string
}

// UpdateTaskInput is a partial task update guarded by the caller's last known token.
// PredecessorTaskID set to nil clears the predecessor.
type UpdateTaskInput struct {
	UpdatedAt         time.Time
	Title             Patch[string]
	Note              Patch[string]
	StartDate         Patch[string]
	EndDate           Patch[string]
	Progress          Patch[int]
	SortOrder         Patch[int]
	AssigneeIDs       Patch[[]string]
	PredecessorTaskID Patch[*string]
}
