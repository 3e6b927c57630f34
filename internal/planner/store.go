package planner

import "context"

// Store is the transactional storage collaborator the planner services run against.
// Lookups that find nothing return a nil entity (or found=false) and a nil error.
type Store interface {
	// Transaction runs work atomically. Calling Transaction on a store handed to work
	// reuses the same transaction.
	Transaction(ctx context.Context, work func(tx Store) error) error
	Projects() ProjectStore
	Users() UserStore
	Tasks() TaskStore
	// History reports the task history sink, if this store has one.
	History() (HistoryStore, bool)
}

// ProjectStore persists projects.
type ProjectStore interface {
	Find(ctx context.Context, projectID string) (*Project, error)
	// List orders by sort order, name, then id.
	List(ctx context.Context) ([]Project, error)
	ListSummaries(ctx context.Context) ([]ProjectSummary, error)
	Create(ctx context.Context, project Project) error
	UpdateWhereUpdatedAt(ctx context.Context, projectID string, expectedUpdatedAt int64, changes NameChanges) (int64, error)
	Update(ctx context.Context, projectID string, changes NameChanges) (int64, error)
	UpdatedAt(ctx context.Context, projectID string) (int64, bool, error)
	Delete(ctx context.Context, projectID string) (int64, error)
	CountTasks(ctx context.Context, projectID string) (int64, error)
	MaxSortOrder(ctx context.Context) (int, bool, error)
	SetSortOrder(ctx context.Context, projectID string, sortOrder int, updatedAt int64) error
}

// UserStore persists users.
type UserStore interface {
	Find(ctx context.Context, userID string) (*User, error)
	// List orders by name, then id.
	List(ctx context.Context) ([]User, error)
	ListSummaries(ctx context.Context) ([]UserSummary, error)
	Create(ctx context.Context, user User) error
	UpdateWhereUpdatedAt(ctx context.Context, userID string, expectedUpdatedAt int64, changes NameChanges) (int64, error)
	Update(ctx context.Context, userID string, changes NameChanges) (int64, error)
	UpdatedAt(ctx context.Context, userID string) (int64, bool, error)
	Delete(ctx context.Context, userID string) (int64, error)
	CountAssignments(ctx context.Context, userID string) (int64, error)
	// CountExisting returns how many of the given ids belong to stored users.
	CountExisting(ctx context.Context, userIDs []string) (int64, error)
}

// TaskStore persists tasks and their assignee join rows. Every lookup is scoped to a project.
type TaskStore interface {
	// FindInProject loads the task with its assignees ordered by user id.
	FindInProject(ctx context.Context, projectID, taskID string) (*Task, error)
	// ListByProject orders by sort order, start date, then id.
	ListByProject(ctx context.Context, projectID string) ([]Task, error)
	ListDependents(ctx context.Context, projectID, predecessorTaskID string) ([]Task, error)
	PredecessorOf(ctx context.Context, projectID, taskID string) (*string, bool, error)
	MaxSortOrder(ctx context.Context, projectID string) (int, bool, error)
	Create(ctx context.Context, task Task) error
	AddAssignees(ctx context.Context, taskID string, userIDs []string) error
	ReplaceAssignees(ctx context.Context, taskID string, userIDs []string) error
	UpdateWhereUpdatedAt(ctx context.Context, projectID, taskID string, expectedUpdatedAt int64, changes TaskChanges) (int64, error)
	Update(ctx context.Context, projectID, taskID string, changes TaskChanges) (int64, error)
	UpdatedAt(ctx context.Context, projectID, taskID string) (int64, bool, error)
	// Delete removes the task and its assignee rows.
	Delete(ctx context.Context, projectID, taskID string) (int64, error)
	SetSortOrder(ctx context.Context, projectID, taskID string, sortOrder int, updatedAt int64) error
}

// HistoryStore is the optional append-only sink for task history entries.
// Implementations return an error matching ErrHistoryUnavailable when the backing storage is gone.
type HistoryStore interface {
	Append(ctx context.Context, entry TaskHistoryEntry) error
	// ListByTask returns entries newest first.
	ListByTask(ctx context.Context, projectID, taskID string) ([]TaskHistoryEntry, error)
}
