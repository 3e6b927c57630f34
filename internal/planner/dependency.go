package planner

import (
	"context"

	"go.uber.org/zap"
)

// checkPredecessor validates a proposed predecessor reference. taskID is empty on create,
// where the cycle walk is skipped because no existing task can depend on a new one.
func (s *Service) checkPredecessor(ctx context.Context, tasks TaskStore, operation, projectID, taskID string, predecessorID *string) error {
	if predecessorID == nil {
		return nil
	}
	candidate := *predecessorID
	if taskID != "" && candidate == taskID {
		return newValidationError("task cannot be its own predecessor")
	}

	next, found, err := s.lookupPredecessor(ctx, tasks, operation, projectID, candidate)
	if err != nil {
		return err
	}
	if !found {
		return newValidationError("predecessor task not found: %s", candidate)
	}
	if taskID == "" {
		return nil
	}

	visited := map[string]struct{}{taskID: {}, candidate: {}}
	for next != nil {
		nodeID := *next
		if _, seen := visited[nodeID]; seen {
			return newValidationError("cyclic dependency detected via task %s", nodeID)
		}
		visited[nodeID] = struct{}{}

		next, found, err = s.lookupPredecessor(ctx, tasks, operation, projectID, nodeID)
		if err != nil {
			return err
		}
		if !found {
			break
		}
	}
	return nil
}

func (s *Service) lookupPredecessor(ctx context.Context, tasks TaskStore, operation, projectID, taskID string) (*string, bool, error) {
	predecessor, found, err := tasks.PredecessorOf(ctx, projectID, taskID)
	if err != nil {
		s.logError(operation, "predecessor_lookup_failed", err,
			zap.String("project_id", projectID),
			zap.String("task_id", taskID))
		return nil, false, newServiceError(operation, "predecessor_lookup_failed", err)
	}
	return predecessor, found, nil
}
