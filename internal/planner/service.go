package planner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

var noOpLogger = zap.NewNop()

const (
	opServiceNew           = "planner.service.new"
	opListProjects         = "planner.list_projects"
	opListProjectSummaries = "planner.list_project_summaries"
	opCreateProject        = "planner.create_project"
	opUpdateProject        = "planner.update_project"
	opDeleteProject        = "planner.delete_project"
	opReorderProjects      = "planner.reorder_projects"
	opListUsers            = "planner.list_users"
	opListUserSummaries    = "planner.list_user_summaries"
	opCreateUser           = "planner.create_user"
	opUpdateUser           = "planner.update_user"
	opDeleteUser           = "planner.delete_user"
	opListTasks            = "planner.list_tasks"
	opCreateTask           = "planner.create_task"
	opUpdateTask           = "planner.update_task"
	opDeleteTask           = "planner.delete_task"
	opReorderTasks         = "planner.reorder_tasks"
	opListTaskHistory      = "planner.list_task_history"
)

// ServiceConfig wires the collaborators of a Service.
type ServiceConfig struct {
	Store      Store
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service implements the project, user and task mutation engines on top of a Store.
type Service struct {
	store      Store
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates cfg and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      cfg.Store,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// nextToken returns a lock token strictly greater than previous.
func (s *Service) nextToken(previous int64) int64 {
	now := s.clock().UnixMilli()
	if now <= previous {
		return previous + 1
	}
	return now
}

func (s *Service) newEntityID(operation, prefix string) (string, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(operation, "id_generation_failed", err)
		return "", newServiceError(operation, "id_generation_failed", err)
	}
	return prefix + id, nil
}

func (s *Service) assertProjectExists(ctx context.Context, store Store, operation, projectID string) error {
	project, err := store.Projects().Find(ctx, projectID)
	if err != nil {
		s.logError(operation, "project_lookup_failed", err, zap.String("project_id", projectID))
		return newServiceError(operation, "project_lookup_failed", err)
	}
	if project == nil {
		return projectNotFound(projectID)
	}
	return nil
}

func (s *Service) assertUsersExist(ctx context.Context, store Store, operation string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	count, err := store.Users().CountExisting(ctx, userIDs)
	if err != nil {
		s.logError(operation, "assignee_lookup_failed", err)
		return newServiceError(operation, "assignee_lookup_failed", err)
	}
	if count != int64(len(userIDs)) {
		return newValidationError("one or more assignees do not exist")
	}
	return nil
}

func normalizeName(entity, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", newValidationError("%s name is required", entity)
	}
	return trimmed, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("planner service error", attrs...)
}
