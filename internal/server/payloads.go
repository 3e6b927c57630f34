package server

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/simplegantt/planner/internal/planner"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// optional distinguishes an absent JSON member from an explicit null.
type optional[T any] struct {
	value T
	set   bool
	null  bool
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

type issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type issues []issue

func (list *issues) add(path, message string) {
	*list = append(*list, issue{Path: path, Message: message})
}

type nameRequest struct {
	Name string `json:"name"`
}

type updateNameRequest struct {
	UpdatedAt string           `json:"updatedAt"`
	Name      optional[string] `json:"name"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type createTaskRequest struct {
	Title             string   `json:"title"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	Progress          *int     `json:"progress"`
	Note              string   `json:"note"`
	SortOrder         *int     `json:"sortOrder"`
	AssigneeIDs       []string `json:"assigneeIds"`
	PredecessorTaskID *string  `json:"predecessorTaskId"`
}

type updateTaskRequest struct {
	UpdatedAt         string             `json:"updatedAt"`
	Title             optional[string]   `json:"title"`
	StartDate         optional[string]   `json:"startDate"`
	EndDate           optional[string]   `json:"endDate"`
	Progress          optional[int]      `json:"progress"`
	Note              optional[string]   `json:"note"`
	SortOrder         optional[int]      `json:"sortOrder"`
	AssigneeIDs       optional[[]string] `json:"assigneeIds"`
	PredecessorTaskID optional[string]   `json:"predecessorTaskId"`
}

func parseUpdatedAt(value string, problems *issues) time.Time {
	if value == "" {
		problems.add("updatedAt", "updatedAt is required")
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		problems.add("updatedAt", "updatedAt must be an RFC 3339 timestamp")
		return time.Time{}
	}
	return parsed
}

func validateReorder(request reorderRequest) issues {
	var problems issues
	if len(request.IDs) == 0 {
		problems.add("ids", "ids must not be empty")
		return problems
	}
	seen := make(map[string]struct{}, len(request.IDs))
	for _, id := range request.IDs {
		if id == "" {
			problems.add("ids", "ids must not contain empty values")
			return problems
		}
		if _, duplicate := seen[id]; duplicate {
			problems.add("ids", "ids must not contain duplicates")
			return problems
		}
		seen[id] = struct{}{}
	}
	return problems
}

func (r updateNameRequest) toPatch(problems *issues) (time.Time, planner.Patch[string]) {
	updatedAt := parseUpdatedAt(r.UpdatedAt, problems)
	var name planner.Patch[string]
	switch {
	case !r.Name.set:
		problems.add("", "no fields to update")
	case r.Name.null:
		problems.add("name", "name must be a string")
	default:
		name = planner.Set(r.Name.value)
	}
	return updatedAt, name
}

func (r createTaskRequest) toInput(problems *issues) planner.CreateTaskInput {
	if r.Progress == nil {
		problems.add("progress", "progress is required")
	}
	if r.PredecessorTaskID != nil && *r.PredecessorTaskID == "" {
		problems.add("predecessorTaskId", "predecessorTaskId must not be empty")
	}
	checkAssigneeIDs(r.AssigneeIDs, problems)
	input := planner.CreateTaskInput{
		Title:             r.Title,
		Note:              r.Note,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		SortOrder:         r.SortOrder,
		AssigneeIDs:       r.AssigneeIDs,
		PredecessorTaskID: r.PredecessorTaskID,
	}
	if r.Progress != nil {
		input.Progress = *r.Progress
	}
	return input
}

func (r updateTaskRequest) toInput(problems *issues) planner.UpdateTaskInput {
	input := planner.UpdateTaskInput{UpdatedAt: parseUpdatedAt(r.UpdatedAt, problems)}
	input.Title = presentValue(r.Title, "title", problems)
	input.StartDate = presentValue(r.StartDate, "startDate", problems)
	input.EndDate = presentValue(r.EndDate, "endDate", problems)
	input.Progress = presentValue(r.Progress, "progress", problems)
	input.Note = presentValue(r.Note, "note", problems)
	input.SortOrder = presentValue(r.SortOrder, "sortOrder", problems)
	input.AssigneeIDs = presentValue(r.AssigneeIDs, "assigneeIds", problems)
	if r.AssigneeIDs.set && !r.AssigneeIDs.null {
		checkAssigneeIDs(r.AssigneeIDs.value, problems)
	}

	switch {
	case !r.PredecessorTaskID.set:
	case r.PredecessorTaskID.null:
		input.PredecessorTaskID = planner.Set[*string](nil)
	case r.PredecessorTaskID.value == "":
		problems.add("predecessorTaskId", "predecessorTaskId must not be empty")
	default:
		predecessorID := r.PredecessorTaskID.value
		input.PredecessorTaskID = planner.Set(&predecessorID)
	}

	if !r.Title.set && !r.StartDate.set && !r.EndDate.set && !r.Progress.set && !r.Note.set &&
		!r.SortOrder.set && !r.AssigneeIDs.set && !r.PredecessorTaskID.set {
		problems.add("", "no fields to update")
	}
	return input
}

func checkAssigneeIDs(ids []string, problems *issues) {
	if slices.Contains(ids, "") {
		problems.add("assigneeIds", "assigneeIds must not contain empty values")
	}
}

// presentValue converts a non-nullable member into a patch, rejecting explicit nulls.
func presentValue[T any](field optional[T], path string, problems *issues) planner.Patch[T] {
	if !field.set {
		return planner.Patch[T]{}
	}
	if field.null {
		problems.add(path, path+" must not be null")
		return planner.Patch[T]{}
	}
	return planner.Set(field.value)
}

type projectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	UpdatedAt string `json:"updatedAt"`
}

type projectSummaryResponse struct {
	projectResponse
	TaskCount int64 `json:"taskCount"`
}

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updatedAt"`
}

type userSummaryResponse struct {
	userResponse
	TaskCount int64 `json:"taskCount"`
}

type taskResponse struct {
	ID                string   `json:"id"`
	ProjectID         string   `json:"projectId"`
	Title             string   `json:"title"`
	Note              string   `json:"note"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	Progress          int      `json:"progress"`
	SortOrder         int      `json:"sortOrder"`
	UpdatedAt         string   `json:"updatedAt"`
	AssigneeIDs       []string `json:"assigneeIds"`
	PredecessorTaskID *string  `json:"predecessorTaskId"`
}

type taskHistoryResponse struct {
	ID                string   `json:"id"`
	TaskID            string   `json:"taskId"`
	ProjectID         string   `json:"projectId"`
	Action            string   `json:"action"`
	ChangedFields     []string `json:"changedFields"`
	Title             string   `json:"title"`
	Note              string   `json:"note"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	Progress          int      `json:"progress"`
	AssigneeIDs       []string `json:"assigneeIds"`
	PredecessorTaskID *string  `json:"predecessorTaskId"`
	CreatedAt         string   `json:"createdAt"`
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func toProjectResponse(project planner.Project) projectResponse {
	return projectResponse{
		ID:        project.ID,
		Name:      project.Name,
		SortOrder: project.SortOrder,
		UpdatedAt: formatTimestamp(project.UpdatedAt()),
	}
}

func toUserResponse(user planner.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		UpdatedAt: formatTimestamp(user.UpdatedAt()),
	}
}

func toTaskResponse(task planner.Task) taskResponse {
	return taskResponse{
		ID:                task.ID,
		ProjectID:         task.ProjectID,
		Title:             task.Title,
		Note:              task.Note,
		StartDate:         task.StartDate,
		EndDate:           task.EndDate,
		Progress:          task.Progress,
		SortOrder:         task.SortOrder,
		UpdatedAt:         formatTimestamp(task.UpdatedAt()),
		AssigneeIDs:       nonNil(task.AssigneeIDs()),
		PredecessorTaskID: task.PredecessorTaskID,
	}
}

func toTaskHistoryResponse(entry planner.TaskHistoryEntry) taskHistoryResponse {
	return taskHistoryResponse{
		ID:                entry.ID,
		TaskID:            entry.TaskID,
		ProjectID:         entry.ProjectID,
		Action:            string(entry.Action),
		ChangedFields:     nonNil(entry.ChangedFields()),
		Title:             entry.Title,
		Note:              entry.Note,
		StartDate:         entry.StartDate,
		EndDate:           entry.EndDate,
		Progress:          entry.Progress,
		AssigneeIDs:       nonNil(entry.AssigneeIDs()),
		PredecessorTaskID: entry.PredecessorTaskID,
		CreatedAt:         formatTimestamp(entry.CreatedAt()),
	}
}

func mapSlice[S any, D any](values []S, convert func(S) D) []D {
	converted := make([]D, 0, len(values))
	for _, value := range values {
		converted = append(converted, convert(value))
	}
	return converted
}
