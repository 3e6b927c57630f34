package planner

import (
	"encoding/json"
	"time"
)

// HistoryAction enumerates the task lifecycle events recorded in task history.
type HistoryAction string

const (
	// HistoryActionCreated marks the insertion of a task.
	HistoryActionCreated HistoryAction = "created"
	// HistoryActionUpdated marks a change to an existing task.
	HistoryActionUpdated HistoryAction = "updated"
	// HistoryActionDeleted marks the removal of a task.
	HistoryActionDeleted HistoryAction = "deleted"
)

// Project groups tasks and carries a dense, zero-based global display order.
type Project struct {
	ID              string `gorm:"column:id;primaryKey;size:190;not null"`
	Name            string `gorm:"column:name;size:320;not null"`
	SortOrder       int    `gorm:"column:sort_order;not null;default:0;index:idx_projects_sort"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Project) TableName() string {
	return "projects"
}

// UpdatedAt returns the optimistic lock token as a UTC timestamp.
func (p Project) UpdatedAt() time.Time {
	return time.UnixMilli(p.UpdatedAtMillis).UTC()
}

// ProjectSummary is a project with the number of tasks it owns.
type ProjectSummary struct {
	Project
	TaskCount int64
}

// User is a person tasks can be assigned to.
type User struct {
	ID              string `gorm:"column:id;primaryKey;size:190;not null"`
	Name            string `gorm:"column:name;size:320;not null;index:idx_users_name"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// UpdatedAt returns the optimistic lock token as a UTC timestamp.
func (u User) UpdatedAt() time.Time {
	return time.UnixMilli(u.UpdatedAtMillis).UTC()
}

// UserSummary is a user with the number of task assignments referencing it.
type UserSummary struct {
	User
	TaskCount int64
}

// Task is a scheduled unit of work inside a project.
type Task struct {
	ID                string         `gorm:"column:id;primaryKey;size:190;not null"`
	ProjectID         string         `gorm:"column:project_id;size:190;not null;index:idx_tasks_project_sort,priority:1"`
	Title             string         `gorm:"column:title;size:512;not null"`
	Note              string         `gorm:"column:note;type:text;not null"`
	StartDate         string         `gorm:"column:start_date;size:10;not null"`
	EndDate           string         `gorm:"column:end_date;size:10;not null"`
	Progress          int            `gorm:"column:progress;not null;default:0"`
	SortOrder         int            `gorm:"column:sort_order;not null;default:0;index:idx_tasks_project_sort,priority:2"`
	PredecessorTaskID *string        `gorm:"column:predecessor_task_id;size:190;index:idx_tasks_predecessor"`
	UpdatedAtMillis   int64          `gorm:"column:updated_at_ms;not null"`
	Assignees         []TaskAssignee `gorm:"foreignKey:TaskID;references:ID"`
}

// TableName provides the explicit table binding for GORM.
func (Task) TableName() string {
	return "tasks"
}

// UpdatedAt returns the optimistic lock token as a UTC timestamp.
func (t Task) UpdatedAt() time.Time {
	return time.UnixMilli(t.UpdatedAtMillis).UTC()
}

// AssigneeIDs lists the ids of the users assigned to the task.
func (t Task) AssigneeIDs() []string {
	ids := make([]string, 0, len(t.Assignees))
	for _, assignee := range t.Assignees {
		ids = append(ids, assignee.UserID)
	}
	return ids
}

func (t Task) fields() TaskFields {
	return TaskFields{
		Title:             t.Title,
		Note:              t.Note,
		StartDate:         t.StartDate,
		EndDate:           t.EndDate,
		Progress:          t.Progress,
		SortOrder:         t.SortOrder,
		PredecessorTaskID: cloneOptionalID(t.PredecessorTaskID),
	}
}

// TaskAssignee joins a task with one assigned user.
type TaskAssignee struct {
	TaskID string `gorm:"column:task_id;primaryKey;size:190;not null"`
	UserID string `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_task_assignees_user"`
}

// TableName provides the explicit table binding for GORM.
func (TaskAssignee) TableName() string {
	return "task_assignees"
}

// TaskHistoryEntry is an append-only audit record of a task mutation.
type TaskHistoryEntry struct {
	ID                string        `gorm:"column:id;primaryKey;size:190;not null"`
	TaskID            string        `gorm:"column:task_id;size:190;not null;index:idx_task_history_task,priority:2"`
	ProjectID         string        `gorm:"column:project_id;size:190;not null;index:idx_task_history_task,priority:1"`
	Action            HistoryAction `gorm:"column:action;size:16;not null"`
	ChangedFieldsJSON string        `gorm:"column:changed_fields;type:text;not null"`
	Title             string        `gorm:"column:title;size:512;not null"`
	Note              string        `gorm:"column:note;type:text;not null"`
	StartDate         string        `gorm:"column:start_date;size:10;not null"`
	EndDate           string        `gorm:"column:end_date;size:10;not null"`
	Progress          int           `gorm:"column:progress;not null"`
	AssigneeIDsJSON   string        `gorm:"column:assignee_ids;type:text;not null"`
	PredecessorTaskID *string       `gorm:"column:predecessor_task_id;size:190"`
	CreatedAtMillis   int64         `gorm:"column:created_at_ms;not null;index:idx_task_history_task,priority:3"`
}

// TableName provides the explicit table binding for GORM.
func (TaskHistoryEntry) TableName() string {
	return "task_history"
}

// ChangedFields decodes the recorded field names, yielding an empty list for unreadable data.
func (e TaskHistoryEntry) ChangedFields() []string {
	return decodeStringList(e.ChangedFieldsJSON)
}

// AssigneeIDs decodes the assignee snapshot, yielding an empty list for unreadable data.
func (e TaskHistoryEntry) AssigneeIDs() []string {
	return decodeStringList(e.AssigneeIDsJSON)
}

// CreatedAt returns the time the entry was recorded.
func (e TaskHistoryEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.CreatedAtMillis).UTC()
}

// TaskFields holds the scalar columns of a task that updates may overwrite.
type TaskFields struct {
	Title             string
	Note              string
	StartDate         string
	EndDate           string
	Progress          int
	SortOrder         int
	PredecessorTaskID *string
}

// TaskChanges describes a task write. A nil Fields only advances the lock token.
type TaskChanges struct {
	Fields          *TaskFields
	UpdatedAtMillis int64
}

// NameChanges describes a project or user rename.
type NameChanges struct {
	Name            string
	UpdatedAtMillis int64
}

func encodeStringList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStringList(raw string) []string {
	var decoded []any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return []string{}
	}
	values := make([]string, 0, len(decoded))
	for _, item := range decoded {
		if value, ok := item.(string); ok {
			values = append(values, value)
		}
	}
	return values
}

func cloneOptionalID(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func equalOptionalID(left, right *string) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return *left == *right
}
