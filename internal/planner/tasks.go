package planner

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const entityTask = "task"

const (
	fieldTitle             = "title"
	fieldNote              = "note"
	fieldStartDate         = "startDate"
	fieldEndDate           = "endDate"
	fieldProgress          = "progress"
	fieldSortOrder         = "sortOrder"
	fieldPredecessorTaskID = "predecessorTaskId"
	fieldAssigneeIDs       = "assigneeIds"
	fieldDeleted           = "deleted"
)

// ListTasks returns the tasks of a project in display order.
func (s *Service) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	if err := s.assertProjectExists(ctx, s.store, opListTasks, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().ListByProject(ctx, projectID)
	if err != nil {
		s.logError(opListTasks, "query_failed", err, zap.String("project_id", projectID))
		return nil, newServiceError(opListTasks, "query_failed", err)
	}
	return tasks, nil
}

// CreateTask inserts a task with its assignees and records a created history entry.
func (s *Service) CreateTask(ctx context.Context, projectID string, input CreateTaskInput) (*Task, error) {
	fields, err := validateNewTask(input)
	if err != nil {
		return nil, err
	}
	assigneeIDs := normalizeIDList(input.AssigneeIDs)

	var created *Task
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		if err := s.assertProjectExists(ctx, tx, opCreateTask, projectID); err != nil {
			return err
		}
		if err := s.assertUsersExist(ctx, tx, opCreateTask, assigneeIDs); err != nil {
			return err
		}
		if err := s.checkPredecessor(ctx, tx.Tasks(), opCreateTask, projectID, "", fields.PredecessorTaskID); err != nil {
			return err
		}

		if input.SortOrder == nil {
			maxSortOrder, found, err := tx.Tasks().MaxSortOrder(ctx, projectID)
			if err != nil {
				s.logError(opCreateTask, "sort_order_lookup_failed", err, zap.String("project_id", projectID))
				return newServiceError(opCreateTask, "sort_order_lookup_failed", err)
			}
			fields.SortOrder = nextSortOrder(maxSortOrder, found)
		}

		taskID, err := s.newEntityID(opCreateTask, taskIDPrefix)
		if err != nil {
			return err
		}
		task := Task{
			ID:                taskID,
			ProjectID:         projectID,
			Title:             fields.Title,
			Note:              fields.Note,
			StartDate:         fields.StartDate,
			EndDate:           fields.EndDate,
			Progress:          fields.Progress,
			SortOrder:         fields.SortOrder,
			PredecessorTaskID: fields.PredecessorTaskID,
			UpdatedAtMillis:   s.clock().UnixMilli(),
		}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			s.logError(opCreateTask, "task_insert_failed", err, zap.String("task_id", taskID))
			return newServiceError(opCreateTask, "task_insert_failed", err)
		}
		if len(assigneeIDs) > 0 {
			if err := tx.Tasks().AddAssignees(ctx, taskID, assigneeIDs); err != nil {
				s.logError(opCreateTask, "assignee_insert_failed", err, zap.String("task_id", taskID))
				return newServiceError(opCreateTask, "assignee_insert_failed", err)
			}
		}

		created, err = s.reloadTask(ctx, tx, opCreateTask, projectID, taskID)
		if err != nil {
			return err
		}

		changed := []string{fieldTitle, fieldNote, fieldStartDate, fieldEndDate, fieldProgress, fieldAssigneeIDs, fieldPredecessorTaskID}
		if input.SortOrder != nil {
			changed = append(changed, fieldSortOrder)
		}
		return s.appendHistory(ctx, tx, opCreateTask, *created, HistoryActionCreated, changed)
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// UpdateTask applies a partial update guarded by the optimistic lock token.
// A nil result means the task does not exist in the project.
func (s *Service) UpdateTask(ctx context.Context, projectID, taskID string, input UpdateTaskInput) (*Task, error) {
	if err := validateTaskPatch(input); err != nil {
		return nil, err
	}
	expected := input.UpdatedAt.UnixMilli()

	var result *Task
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		if err := s.assertProjectExists(ctx, tx, opUpdateTask, projectID); err != nil {
			return err
		}
		current, err := tx.Tasks().FindInProject(ctx, projectID, taskID)
		if err != nil {
			s.logError(opUpdateTask, "task_lookup_failed", err, zap.String("task_id", taskID))
			return newServiceError(opUpdateTask, "task_lookup_failed", err)
		}
		if current == nil {
			return nil
		}
		if err := checkLockToken(entityTask, taskID, current.UpdatedAtMillis, expected); err != nil {
			return err
		}

		next, changed := overlayTask(current.fields(), input)
		if next.StartDate > next.EndDate {
			return newValidationError("startDate must be on or before endDate")
		}

		var nextAssignees []string
		assigneesChanged := false
		if requested, ok := input.AssigneeIDs.Get(); ok {
			nextAssignees = normalizeIDList(requested)
			if err := s.assertUsersExist(ctx, tx, opUpdateTask, nextAssignees); err != nil {
				return err
			}
			assigneesChanged = !sameIDSet(current.AssigneeIDs(), nextAssignees)
		}

		if err := s.checkPredecessor(ctx, tx.Tasks(), opUpdateTask, projectID, taskID, next.PredecessorTaskID); err != nil {
			return err
		}

		scalarChanged := len(changed) > 0
		if assigneesChanged {
			changed = append(changed, fieldAssigneeIDs)
		}
		if len(changed) == 0 {
			result = current
			return nil
		}

		// An assignee-only change still advances the token.
		changes := TaskChanges{UpdatedAtMillis: s.nextToken(expected)}
		if scalarChanged {
			changes.Fields = &next
		}
		applied, err := s.writeLocked(opUpdateTask, lockedWrite{
			entity:   entityTask,
			id:       taskID,
			expected: expected,
			conditional: func() (int64, error) {
				return tx.Tasks().UpdateWhereUpdatedAt(ctx, projectID, taskID, expected, changes)
			},
			latest: func() (int64, bool, error) {
				return tx.Tasks().UpdatedAt(ctx, projectID, taskID)
			},
			unconditional: func() (int64, error) {
				return tx.Tasks().Update(ctx, projectID, taskID, changes)
			},
		})
		if err != nil || !applied {
			return err
		}

		if assigneesChanged {
			if err := tx.Tasks().ReplaceAssignees(ctx, taskID, nextAssignees); err != nil {
				s.logError(opUpdateTask, "assignee_replace_failed", err, zap.String("task_id", taskID))
				return newServiceError(opUpdateTask, "assignee_replace_failed", err)
			}
		}

		result, err = s.reloadTask(ctx, tx, opUpdateTask, projectID, taskID)
		if err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, opUpdateTask, *result, HistoryActionUpdated, changed)
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// DeleteTask removes a task and clears the predecessor reference of every task that pointed at it.
// It reports false when the task does not exist in the project.
func (s *Service) DeleteTask(ctx context.Context, projectID, taskID string) (bool, error) {
	deleted := false
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		if err := s.assertProjectExists(ctx, tx, opDeleteTask, projectID); err != nil {
			return err
		}
		existing, err := tx.Tasks().FindInProject(ctx, projectID, taskID)
		if err != nil {
			s.logError(opDeleteTask, "task_lookup_failed", err, zap.String("task_id", taskID))
			return newServiceError(opDeleteTask, "task_lookup_failed", err)
		}
		if existing == nil {
			return nil
		}

		dependents, err := tx.Tasks().ListDependents(ctx, projectID, taskID)
		if err != nil {
			s.logError(opDeleteTask, "dependent_lookup_failed", err, zap.String("task_id", taskID))
			return newServiceError(opDeleteTask, "dependent_lookup_failed", err)
		}

		rows, err := tx.Tasks().Delete(ctx, projectID, taskID)
		if err != nil {
			s.logError(opDeleteTask, "task_delete_failed", err, zap.String("task_id", taskID))
			return newServiceError(opDeleteTask, "task_delete_failed", err)
		}
		if rows == 0 {
			return nil
		}
		deleted = true

		for _, dependent := range dependents {
			if dependent.ID == taskID {
				continue
			}
			if err := s.detachPredecessor(ctx, tx, projectID, dependent); err != nil {
				return err
			}
		}

		return s.appendHistory(ctx, tx, opDeleteTask, *existing, HistoryActionDeleted, []string{fieldDeleted})
	})
	if txErr != nil {
		return false, txErr
	}
	return deleted, nil
}

func (s *Service) detachPredecessor(ctx context.Context, tx Store, projectID string, dependent Task) error {
	fields := dependent.fields()
	fields.PredecessorTaskID = nil
	changes := TaskChanges{Fields: &fields, UpdatedAtMillis: s.nextToken(dependent.UpdatedAtMillis)}
	if _, err := tx.Tasks().Update(ctx, projectID, dependent.ID, changes); err != nil {
		s.logError(opDeleteTask, "dependent_update_failed", err, zap.String("task_id", dependent.ID))
		return newServiceError(opDeleteTask, "dependent_update_failed", err)
	}
	detached, err := s.reloadTask(ctx, tx, opDeleteTask, projectID, dependent.ID)
	if err != nil {
		return err
	}
	return s.appendHistory(ctx, tx, opDeleteTask, *detached, HistoryActionUpdated, []string{fieldPredecessorTaskID})
}

// ReorderTasks assigns each task of the project its index in ids. ids must list every task exactly once.
func (s *Service) ReorderTasks(ctx context.Context, projectID string, ids []string) ([]Task, error) {
	var reordered []Task
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		if err := s.assertProjectExists(ctx, tx, opReorderTasks, projectID); err != nil {
			return err
		}
		tasks, err := tx.Tasks().ListByProject(ctx, projectID)
		if err != nil {
			s.logError(opReorderTasks, "query_failed", err, zap.String("project_id", projectID))
			return newServiceError(opReorderTasks, "query_failed", err)
		}

		byID := make(map[string]Task, len(tasks))
		current := make(map[string]struct{}, len(tasks))
		for _, task := range tasks {
			byID[task.ID] = task
			current[task.ID] = struct{}{}
		}
		if err := validatePermutation(entityTask, ids, current); err != nil {
			return err
		}

		for index, id := range ids {
			task := byID[id]
			if task.SortOrder == index {
				continue
			}
			if err := tx.Tasks().SetSortOrder(ctx, projectID, id, index, s.nextToken(task.UpdatedAtMillis)); err != nil {
				s.logError(opReorderTasks, "sort_order_update_failed", err, zap.String("task_id", id))
				return newServiceError(opReorderTasks, "sort_order_update_failed", err)
			}
		}

		reordered, err = tx.Tasks().ListByProject(ctx, projectID)
		if err != nil {
			s.logError(opReorderTasks, "reload_failed", err, zap.String("project_id", projectID))
			return newServiceError(opReorderTasks, "reload_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return reordered, nil
}

func (s *Service) reloadTask(ctx context.Context, tx Store, operation, projectID, taskID string) (*Task, error) {
	task, err := tx.Tasks().FindInProject(ctx, projectID, taskID)
	if err != nil {
		s.logError(operation, "task_reload_failed", err, zap.String("task_id", taskID))
		return nil, newServiceError(operation, "task_reload_failed", err)
	}
	if task == nil {
		s.logError(operation, "task_reload_failed", errTaskVanished, zap.String("task_id", taskID))
		return nil, newServiceError(operation, "task_reload_failed", errTaskVanished)
	}
	return task, nil
}

func validateNewTask(input CreateTaskInput) (TaskFields, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return TaskFields{}, newValidationError("task title is required")
	}
	if err := validateDate(fieldStartDate, input.StartDate); err != nil {
		return TaskFields{}, err
	}
	if err := validateDate(fieldEndDate, input.EndDate); err != nil {
		return TaskFields{}, err
	}
	if input.StartDate > input.EndDate {
		return TaskFields{}, newValidationError("startDate must be on or before endDate")
	}
	if err := validateProgress(input.Progress); err != nil {
		return TaskFields{}, err
	}
	fields := TaskFields{
		Title:             title,
		Note:              input.Note,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		Progress:          input.Progress,
		PredecessorTaskID: normalizeOptionalID(input.PredecessorTaskID),
	}
	if input.SortOrder != nil {
		if err := validateSortOrder(*input.SortOrder); err != nil {
			return TaskFields{}, err
		}
		fields.SortOrder = *input.SortOrder
	}
	return fields, nil
}

func validateTaskPatch(input UpdateTaskInput) error {
	if title, ok := input.Title.Get(); ok && strings.TrimSpace(title) == "" {
		return newValidationError("task title is required")
	}
	if startDate, ok := input.StartDate.Get(); ok {
		if err := validateDate(fieldStartDate, startDate); err != nil {
			return err
		}
	}
	if endDate, ok := input.EndDate.Get(); ok {
		if err := validateDate(fieldEndDate, endDate); err != nil {
			return err
		}
	}
	if progress, ok := input.Progress.Get(); ok {
		if err := validateProgress(progress); err != nil {
			return err
		}
	}
	if sortOrder, ok := input.SortOrder.Get(); ok {
		if err := validateSortOrder(sortOrder); err != nil {
			return err
		}
	}
	return nil
}

func validateDate(field, value string) error {
	if !IsISODate(value) {
		return newValidationError("%s must be a YYYY-MM-DD date", field)
	}
	return nil
}

func validateProgress(progress int) error {
	if progress < 0 || progress > 100 {
		return newValidationError("progress must be between 0 and 100")
	}
	return nil
}

func validateSortOrder(sortOrder int) error {
	if sortOrder < 0 {
		return newValidationError("sortOrder must not be negative")
	}
	return nil
}

// overlayTask applies the supplied fields onto current and lists the scalar fields that differ.
func overlayTask(current TaskFields, input UpdateTaskInput) (TaskFields, []string) {
	next := current
	changed := make([]string, 0, 7)

	if title, ok := input.Title.Get(); ok {
		next.Title = strings.TrimSpace(title)
	}
	if note, ok := input.Note.Get(); ok {
		next.Note = note
	}
	if startDate, ok := input.StartDate.Get(); ok {
		next.StartDate = startDate
	}
	if endDate, ok := input.EndDate.Get(); ok {
		next.EndDate = endDate
	}
	if progress, ok := input.Progress.Get(); ok {
		next.Progress = progress
	}
	if sortOrder, ok := input.SortOrder.Get(); ok {
		next.SortOrder = sortOrder
	}
	if predecessor, ok := input.PredecessorTaskID.Get(); ok {
		next.PredecessorTaskID = normalizeOptionalID(predecessor)
	}

	if next.Title != current.Title {
		changed = append(changed, fieldTitle)
	}
	if next.Note != current.Note {
		changed = append(changed, fieldNote)
	}
	if next.StartDate != current.StartDate {
		changed = append(changed, fieldStartDate)
	}
	if next.EndDate != current.EndDate {
		changed = append(changed, fieldEndDate)
	}
	if next.Progress != current.Progress {
		changed = append(changed, fieldProgress)
	}
	if next.SortOrder != current.SortOrder {
		changed = append(changed, fieldSortOrder)
	}
	if !equalOptionalID(next.PredecessorTaskID, current.PredecessorTaskID) {
		changed = append(changed, fieldPredecessorTaskID)
	}
	return next, changed
}
