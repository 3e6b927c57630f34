package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/simplegantt/planner/internal/planner"
)

type projectTable struct{ access accessor }

func (t projectTable) Find(_ context.Context, projectID string) (*planner.Project, error) {
	var found *planner.Project
	err := t.access(func(st *state) error {
		if project, ok := st.projects[projectID]; ok {
			found = &project
		}
		return nil
	})
	return found, err
}

func (t projectTable) List(_ context.Context) ([]planner.Project, error) {
	var projects []planner.Project
	err := t.access(func(st *state) error {
		projects = sortedProjects(st)
		return nil
	})
	return projects, err
}

func (t projectTable) ListSummaries(_ context.Context) ([]planner.ProjectSummary, error) {
	var summaries []planner.ProjectSummary
	err := t.access(func(st *state) error {
		counts := map[string]int64{}
		for _, task := range st.tasks {
			counts[task.ProjectID]++
		}
		for _, project := range sortedProjects(st) {
			summaries = append(summaries, planner.ProjectSummary{Project: project, TaskCount: counts[project.ID]})
		}
		return nil
	})
	return summaries, err
}

func (t projectTable) Create(_ context.Context, project planner.Project) error {
	return t.access(func(st *state) error {
		if _, exists := st.projects[project.ID]; exists {
			return fmt.Errorf("%w: project %s", errDuplicateID, project.ID)
		}
		st.projects[project.ID] = project
		return nil
	})
}

func (t projectTable) UpdateWhereUpdatedAt(_ context.Context, projectID string, expectedUpdatedAt int64, changes planner.NameChanges) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		project, ok := st.projects[projectID]
		if !ok || project.UpdatedAtMillis != expectedUpdatedAt {
			return nil
		}
		project.Name = changes.Name
		project.UpdatedAtMillis = changes.UpdatedAtMillis
		st.projects[projectID] = project
		rows = 1
		return nil
	})
	return rows, err
}

func (t projectTable) Update(_ context.Context, projectID string, changes planner.NameChanges) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		project, ok := st.projects[projectID]
		if !ok {
			return nil
		}
		project.Name = changes.Name
		project.UpdatedAtMillis = changes.UpdatedAtMillis
		st.projects[projectID] = project
		rows = 1
		return nil
	})
	return rows, err
}

func (t projectTable) UpdatedAt(_ context.Context, projectID string) (int64, bool, error) {
	var (
		token int64
		found bool
	)
	err := t.access(func(st *state) error {
		project, ok := st.projects[projectID]
		token, found = project.UpdatedAtMillis, ok
		return nil
	})
	return token, found, err
}

func (t projectTable) Delete(_ context.Context, projectID string) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		if _, ok := st.projects[projectID]; ok {
			delete(st.projects, projectID)
			rows = 1
		}
		return nil
	})
	return rows, err
}

func (t projectTable) CountTasks(_ context.Context, projectID string) (int64, error) {
	var count int64
	err := t.access(func(st *state) error {
		for _, task := range st.tasks {
			if task.ProjectID == projectID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (t projectTable) MaxSortOrder(_ context.Context) (int, bool, error) {
	var (
		maxSortOrder int
		found        bool
	)
	err := t.access(func(st *state) error {
		for _, project := range st.projects {
			if !found || project.SortOrder > maxSortOrder {
				maxSortOrder = project.SortOrder
				found = true
			}
		}
		return nil
	})
	return maxSortOrder, found, err
}

func (t projectTable) SetSortOrder(_ context.Context, projectID string, sortOrder int, updatedAt int64) error {
	return t.access(func(st *state) error {
		project, ok := st.projects[projectID]
		if !ok {
			return nil
		}
		project.SortOrder = sortOrder
		project.UpdatedAtMillis = updatedAt
		st.projects[projectID] = project
		return nil
	})
}

func sortedProjects(st *state) []planner.Project {
	projects := make([]planner.Project, 0, len(st.projects))
	for _, project := range st.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].SortOrder != projects[j].SortOrder {
			return projects[i].SortOrder < projects[j].SortOrder
		}
		if projects[i].Name != projects[j].Name {
			return projects[i].Name < projects[j].Name
		}
		return projects[i].ID < projects[j].ID
	})
	return projects
}

type userTable struct{ access accessor }

func (t userTable) Find(_ context.Context, userID string) (*planner.User, error) {
	var found *planner.User
	err := t.access(func(st *state) error {
		if user, ok := st.users[userID]; ok {
			found = &user
		}
		return nil
	})
	return found, err
}

func (t userTable) List(_ context.Context) ([]planner.User, error) {
	var users []planner.User
	err := t.access(func(st *state) error {
		users = sortedUsers(st)
		return nil
	})
	return users, err
}

func (t userTable) ListSummaries(_ context.Context) ([]planner.UserSummary, error) {
	var summaries []planner.UserSummary
	err := t.access(func(st *state) error {
		counts := map[string]int64{}
		for _, userIDs := range st.assignees {
			for _, userID := range userIDs {
				counts[userID]++
			}
		}
		for _, user := range sortedUsers(st) {
			summaries = append(summaries, planner.UserSummary{User: user, TaskCount: counts[user.ID]})
		}
		return nil
	})
	return summaries, err
}

func (t userTable) Create(_ context.Context, user planner.User) error {
	return t.access(func(st *state) error {
		if _, exists := st.users[user.ID]; exists {
			return fmt.Errorf("%w: user %s", errDuplicateID, user.ID)
		}
		st.users[user.ID] = user
		return nil
	})
}

func (t userTable) UpdateWhereUpdatedAt(_ context.Context, userID string, expectedUpdatedAt int64, changes planner.NameChanges) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		user, ok := st.users[userID]
		if !ok || user.UpdatedAtMillis != expectedUpdatedAt {
			return nil
		}
		user.Name = changes.Name
		user.UpdatedAtMillis = changes.UpdatedAtMillis
		st.users[userID] = user
		rows = 1
		return nil
	})
	return rows, err
}

func (t userTable) Update(_ context.Context, userID string, changes planner.NameChanges) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		user, ok := st.users[userID]
		if !ok {
			return nil
		}
		user.Name = changes.Name
		user.UpdatedAtMillis = changes.UpdatedAtMillis
		st.users[userID] = user
		rows = 1
		return nil
	})
	return rows, err
}

func (t userTable) UpdatedAt(_ context.Context, userID string) (int64, bool, error) {
	var (
		token int64
		found bool
	)
	err := t.access(func(st *state) error {
		user, ok := st.users[userID]
		token, found = user.UpdatedAtMillis, ok
		return nil
	})
	return token, found, err
}

func (t userTable) Delete(_ context.Context, userID string) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		if _, ok := st.users[userID]; ok {
			delete(st.users, userID)
			rows = 1
		}
		return nil
	})
	return rows, err
}

func (t userTable) CountAssignments(_ context.Context, userID string) (int64, error) {
	var count int64
	err := t.access(func(st *state) error {
		for _, userIDs := range st.assignees {
			for _, assigned := range userIDs {
				if assigned == userID {
					count++
				}
			}
		}
		return nil
	})
	return count, err
}

func (t userTable) CountExisting(_ context.Context, userIDs []string) (int64, error) {
	var count int64
	err := t.access(func(st *state) error {
		seen := map[string]struct{}{}
		for _, userID := range userIDs {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
			if _, ok := st.users[userID]; ok {
				count++
			}
		}
		return nil
	})
	return count, err
}

func sortedUsers(st *state) []planner.User {
	users := make([]planner.User, 0, len(st.users))
	for _, user := range st.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users
}

type taskTable struct{ access accessor }

func (t taskTable) FindInProject(_ context.Context, projectID, taskID string) (*planner.Task, error) {
	var found *planner.Task
	err := t.access(func(st *state) error {
		task, ok := st.tasks[taskID]
		if !ok || task.ProjectID != projectID {
			return nil
		}
		loaded := withAssignees(st, task)
		found = &loaded
		return nil
	})
	return found, err
}

func (t taskTable) ListByProject(_ context.Context, projectID string) ([]planner.Task, error) {
	var tasks []planner.Task
	err := t.access(func(st *state) error {
		tasks = projectTasks(st, projectID, func(planner.Task) bool { return true })
		return nil
	})
	return tasks, err
}

func (t taskTable) ListDependents(_ context.Context, projectID, predecessorTaskID string) ([]planner.Task, error) {
	var tasks []planner.Task
	err := t.access(func(st *state) error {
		tasks = projectTasks(st, projectID, func(task planner.Task) bool {
			return task.PredecessorTaskID != nil && *task.PredecessorTaskID == predecessorTaskID
		})
		return nil
	})
	return tasks, err
}

func (t taskTable) PredecessorOf(_ context.Context, projectID, taskID string) (*string, bool, error) {
	var (
		predecessor *string
		found       bool
	)
	err := t.access(func(st *state) error {
		task, ok := st.tasks[taskID]
		if !ok || task.ProjectID != projectID {
			return nil
		}
		predecessor, found = cloneOptionalID(task.PredecessorTaskID), true
		return nil
	})
	return predecessor, found, err
}

func (t taskTable) MaxSortOrder(_ context.Context, projectID string) (int, bool, error) {
	var (
		maxSortOrder int
		found        bool
	)
	err := t.access(func(st *state) error {
		for _, task := range st.tasks {
			if task.ProjectID != projectID {
				continue
			}
			if !found || task.SortOrder > maxSortOrder {
				maxSortOrder = task.SortOrder
				found = true
			}
		}
		return nil
	})
	return maxSortOrder, found, err
}

func (t taskTable) Create(_ context.Context, task planner.Task) error {
	return t.access(func(st *state) error {
		if _, exists := st.tasks[task.ID]; exists {
			return fmt.Errorf("%w: task %s", errDuplicateID, task.ID)
		}
		st.tasks[task.ID] = cloneTask(task)
		return nil
	})
}

func (t taskTable) AddAssignees(_ context.Context, taskID string, userIDs []string) error {
	return t.access(func(st *state) error {
		merged := append(append([]string(nil), st.assignees[taskID]...), userIDs...)
		st.assignees[taskID] = uniqueSorted(merged)
		return nil
	})
}

func (t taskTable) ReplaceAssignees(_ context.Context, taskID string, userIDs []string) error {
	return t.access(func(st *state) error {
		if len(userIDs) == 0 {
			delete(st.assignees, taskID)
			return nil
		}
		st.assignees[taskID] = uniqueSorted(append([]string(nil), userIDs...))
		return nil
	})
}

func (t taskTable) UpdateWhereUpdatedAt(_ context.Context, projectID, taskID string, expectedUpdatedAt int64, changes planner.TaskChanges) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		task, ok := st.tasks[taskID]
		if !ok || task.ProjectID != projectID || task.UpdatedAtMillis != expectedUpdatedAt {
			return nil
		}
		st.tasks[taskID] = applyTaskChanges(task, changes)
		rows = 1
		return nil
	})
	return rows, err
}

func (t taskTable) Update(_ context.Context, projectID, taskID string, changes planner.TaskChanges) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		task, ok := st.tasks[taskID]
		if !ok || task.ProjectID != projectID {
			return nil
		}
		st.tasks[taskID] = applyTaskChanges(task, changes)
		rows = 1
		return nil
	})
	return rows, err
}

func (t taskTable) UpdatedAt(_ context.Context, projectID, taskID string) (int64, bool, error) {
	var (
		token int64
		found bool
	)
	err := t.access(func(st *state) error {
		task, ok := st.tasks[taskID]
		if !ok || task.ProjectID != projectID {
			return nil
		}
		token, found = task.UpdatedAtMillis, true
		return nil
	})
	return token, found, err
}

func (t taskTable) Delete(_ context.Context, projectID, taskID string) (int64, error) {
	var rows int64
	err := t.access(func(st *state) error {
		task, ok := st.tasks[taskID]
		if !ok || task.ProjectID != projectID {
			return nil
		}
		delete(st.tasks, taskID)
		delete(st.assignees, taskID)
		rows = 1
		return nil
	})
	return rows, err
}

func (t taskTable) SetSortOrder(_ context.Context, projectID, taskID string, sortOrder int, updatedAt int64) error {
	return t.access(func(st *state) error {
		task, ok := st.tasks[taskID]
		if !ok || task.ProjectID != projectID {
			return nil
		}
		task.SortOrder = sortOrder
		task.UpdatedAtMillis = updatedAt
		st.tasks[taskID] = task
		return nil
	})
}

func applyTaskChanges(task planner.Task, changes planner.TaskChanges) planner.Task {
	if fields := changes.Fields; fields != nil {
		task.Title = fields.Title
		task.Note = fields.Note
		task.StartDate = fields.StartDate
		task.EndDate = fields.EndDate
		task.Progress = fields.Progress
		task.SortOrder = fields.SortOrder
		task.PredecessorTaskID = cloneOptionalID(fields.PredecessorTaskID)
	}
	task.UpdatedAtMillis = changes.UpdatedAtMillis
	return task
}

func withAssignees(st *state, task planner.Task) planner.Task {
	loaded := cloneTask(task)
	userIDs := st.assignees[task.ID]
	loaded.Assignees = make([]planner.TaskAssignee, 0, len(userIDs))
	for _, userID := range userIDs {
		loaded.Assignees = append(loaded.Assignees, planner.TaskAssignee{TaskID: task.ID, UserID: userID})
	}
	return loaded
}

func projectTasks(st *state, projectID string, keep func(planner.Task) bool) []planner.Task {
	tasks := make([]planner.Task, 0)
	for _, task := range st.tasks {
		if task.ProjectID == projectID && keep(task) {
			tasks = append(tasks, withAssignees(st, task))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].SortOrder != tasks[j].SortOrder {
			return tasks[i].SortOrder < tasks[j].SortOrder
		}
		if tasks[i].StartDate != tasks[j].StartDate {
			return tasks[i].StartDate < tasks[j].StartDate
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

func uniqueSorted(values []string) []string {
	sort.Strings(values)
	unique := values[:0]
	for i, value := range values {
		if i > 0 && value == values[i-1] {
			continue
		}
		unique = append(unique, value)
	}
	return unique
}

type historyTable struct{ access accessor }

func (t historyTable) Append(_ context.Context, entry planner.TaskHistoryEntry) error {
	return t.access(func(st *state) error {
		entry.PredecessorTaskID = cloneOptionalID(entry.PredecessorTaskID)
		st.history = append(st.history, entry)
		return nil
	})
}

func (t historyTable) ListByTask(_ context.Context, projectID, taskID string) ([]planner.TaskHistoryEntry, error) {
	entries := make([]planner.TaskHistoryEntry, 0)
	err := t.access(func(st *state) error {
		for _, entry := range st.history {
			if entry.ProjectID == projectID && entry.TaskID == taskID {
				entries = append(entries, entry)
			}
		}
		return nil
	})
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAtMillis != entries[j].CreatedAtMillis {
			return entries[i].CreatedAtMillis > entries[j].CreatedAtMillis
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, err
}
