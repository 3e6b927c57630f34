package planner

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// appendHistory records a task mutation. Missing history storage is logged and tolerated.
func (s *Service) appendHistory(ctx context.Context, tx Store, operation string, task Task, action HistoryAction, changedFields []string) error {
	history, ok := tx.History()
	if !ok {
		return nil
	}

	entryID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(operation, "history_id_generation_failed", err, zap.String("task_id", task.ID))
		return newServiceError(operation, "history_id_generation_failed", err)
	}

	entry := TaskHistoryEntry{
		ID:                entryID,
		TaskID:            task.ID,
		ProjectID:         task.ProjectID,
		Action:            action,
		ChangedFieldsJSON: encodeStringList(changedFields),
		Title:             task.Title,
		Note:              task.Note,
		StartDate:         task.StartDate,
		EndDate:           task.EndDate,
		Progress:          task.Progress,
		AssigneeIDsJSON:   encodeStringList(task.AssigneeIDs()),
		PredecessorTaskID: cloneOptionalID(task.PredecessorTaskID),
		CreatedAtMillis:   s.clock().UnixMilli(),
	}
	if err := history.Append(ctx, entry); err != nil {
		if errors.Is(err, ErrHistoryUnavailable) {
			s.loggerOrDefault().Warn("task history unavailable; skipping entry",
				zap.String("operation", operation),
				zap.String("task_id", task.ID),
				zap.Error(err))
			return nil
		}
		s.logError(operation, "history_insert_failed", err, zap.String("task_id", task.ID))
		return newServiceError(operation, "history_insert_failed", err)
	}
	return nil
}

// ListTaskHistory returns the history of a task newest first. It is empty when history storage is absent.
func (s *Service) ListTaskHistory(ctx context.Context, projectID, taskID string) ([]TaskHistoryEntry, error) {
	if err := s.assertProjectExists(ctx, s.store, opListTaskHistory, projectID); err != nil {
		return nil, err
	}
	history, ok := s.store.History()
	if !ok {
		return []TaskHistoryEntry{}, nil
	}
	entries, err := history.ListByTask(ctx, projectID, taskID)
	if errors.Is(err, ErrHistoryUnavailable) {
		return []TaskHistoryEntry{}, nil
	}
	if err != nil {
		s.logError(opListTaskHistory, "query_failed", err, zap.String("task_id", taskID))
		return nil, newServiceError(opListTaskHistory, "query_failed", err)
	}
	return entries, nil
}
