package planner

import (
	"context"

	"go.uber.org/zap"
)

const entityProject = "project"

// ListProjects returns every project in display order.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	projects, err := s.store.Projects().List(ctx)
	if err != nil {
		s.logError(opListProjects, "query_failed", err)
		return nil, newServiceError(opListProjects, "query_failed", err)
	}
	return projects, nil
}

// ListProjectSummaries returns every project with its task count.
func (s *Service) ListProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	summaries, err := s.store.Projects().ListSummaries(ctx)
	if err != nil {
		s.logError(opListProjectSummaries, "query_failed", err)
		return nil, newServiceError(opListProjectSummaries, "query_failed", err)
	}
	return summaries, nil
}

// CreateProject appends a new project after the last one.
func (s *Service) CreateProject(ctx context.Context, input CreateProjectInput) (*Project, error) {
	name, err := normalizeName(entityProject, input.Name)
	if err != nil {
		return nil, err
	}

	var created Project
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		maxSortOrder, found, err := tx.Projects().MaxSortOrder(ctx)
		if err != nil {
			s.logError(opCreateProject, "sort_order_lookup_failed", err)
			return newServiceError(opCreateProject, "sort_order_lookup_failed", err)
		}
		id, err := s.newEntityID(opCreateProject, projectIDPrefix)
		if err != nil {
			return err
		}
		created = Project{
			ID:              id,
			Name:            name,
			SortOrder:       nextSortOrder(maxSortOrder, found),
			UpdatedAtMillis: s.clock().UnixMilli(),
		}
		if err := tx.Projects().Create(ctx, created); err != nil {
			s.logError(opCreateProject, "project_insert_failed", err, zap.String("project_id", id))
			return newServiceError(opCreateProject, "project_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &created, nil
}

// UpdateProject renames a project. A nil result means the project does not exist.
func (s *Service) UpdateProject(ctx context.Context, projectID string, input UpdateProjectInput) (*Project, error) {
	return renameLocked[Project](ctx, s, s.store.Projects(), opUpdateProject, entityProject, projectID, input.UpdatedAt, input.Name)
}

// DeleteProject removes a project that owns no tasks. It reports false when the project does not exist.
func (s *Service) DeleteProject(ctx context.Context, projectID string) (bool, error) {
	deleted := false
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Projects().Find(ctx, projectID)
		if err != nil {
			s.logError(opDeleteProject, "project_lookup_failed", err, zap.String("project_id", projectID))
			return newServiceError(opDeleteProject, "project_lookup_failed", err)
		}
		if existing == nil {
			return nil
		}

		taskCount, err := tx.Projects().CountTasks(ctx, projectID)
		if err != nil {
			s.logError(opDeleteProject, "task_count_failed", err, zap.String("project_id", projectID))
			return newServiceError(opDeleteProject, "task_count_failed", err)
		}
		if taskCount > 0 {
			return newValidationError("project still has %d task(s); delete or move them first", taskCount)
		}

		rows, err := tx.Projects().Delete(ctx, projectID)
		if err != nil {
			s.logError(opDeleteProject, "project_delete_failed", err, zap.String("project_id", projectID))
			return newServiceError(opDeleteProject, "project_delete_failed", err)
		}
		deleted = rows > 0
		return nil
	})
	if txErr != nil {
		return false, txErr
	}
	return deleted, nil
}

// ReorderProjects assigns each project its index in ids. ids must list every project exactly once.
func (s *Service) ReorderProjects(ctx context.Context, ids []string) ([]Project, error) {
	var reordered []Project
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		projects, err := tx.Projects().List(ctx)
		if err != nil {
			s.logError(opReorderProjects, "query_failed", err)
			return newServiceError(opReorderProjects, "query_failed", err)
		}

		byID := make(map[string]Project, len(projects))
		current := make(map[string]struct{}, len(projects))
		for _, project := range projects {
			byID[project.ID] = project
			current[project.ID] = struct{}{}
		}
		if err := validatePermutation(entityProject, ids, current); err != nil {
			return err
		}

		for index, id := range ids {
			project := byID[id]
			if project.SortOrder == index {
				continue
			}
			if err := tx.Projects().SetSortOrder(ctx, id, index, s.nextToken(project.UpdatedAtMillis)); err != nil {
				s.logError(opReorderProjects, "sort_order_update_failed", err, zap.String("project_id", id))
				return newServiceError(opReorderProjects, "sort_order_update_failed", err)
			}
		}

		reordered, err = tx.Projects().List(ctx)
		if err != nil {
			s.logError(opReorderProjects, "reload_failed", err)
			return newServiceError(opReorderProjects, "reload_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return reordered, nil
}
