package planner

import (
	"context"

	"go.uber.org/zap"
)

const entityUser = "user"

// ListUsers returns every user ordered by name.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		s.logError(opListUsers, "query_failed", err)
		return nil, newServiceError(opListUsers, "query_failed", err)
	}
	return users, nil
}

// ListUserSummaries returns every user with the number of tasks assigned to them.
func (s *Service) ListUserSummaries(ctx context.Context) ([]UserSummary, error) {
	summaries, err := s.store.Users().ListSummaries(ctx)
	if err != nil {
		s.logError(opListUserSummaries, "query_failed", err)
		return nil, newServiceError(opListUserSummaries, "query_failed", err)
	}
	return summaries, nil
}

// CreateUser validates the name and stores a new user.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	name, err := normalizeName(entityUser, input.Name)
	if err != nil {
		return nil, err
	}
	id, err := s.newEntityID(opCreateUser, userIDPrefix)
	if err != nil {
		return nil, err
	}
	created := User{
		ID:              id,
		Name:            name,
		UpdatedAtMillis: s.clock().UnixMilli(),
	}
	if err := s.store.Users().Create(ctx, created); err != nil {
		s.logError(opCreateUser, "user_insert_failed", err, zap.String("user_id", id))
		return nil, newServiceError(opCreateUser, "user_insert_failed", err)
	}
	return &created, nil
}

// UpdateUser renames a user. A nil result means the user does not exist.
func (s *Service) UpdateUser(ctx context.Context, userID string, input UpdateUserInput) (*User, error) {
	return renameLocked[User](ctx, s, s.store.Users(), opUpdateUser, entityUser, userID, input.UpdatedAt, input.Name)
}

// DeleteUser removes a user with no task assignments. It reports false when the user does not exist.
func (s *Service) DeleteUser(ctx context.Context, userID string) (bool, error) {
	deleted := false
	txErr := s.store.Transaction(ctx, func(tx Store) error {
		existing, err := tx.Users().Find(ctx, userID)
		if err != nil {
			s.logError(opDeleteUser, "user_lookup_failed", err, zap.String("user_id", userID))
			return newServiceError(opDeleteUser, "user_lookup_failed", err)
		}
		if existing == nil {
			return nil
		}

		assignments, err := tx.Users().CountAssignments(ctx, userID)
		if err != nil {
			s.logError(opDeleteUser, "assignment_count_failed", err, zap.String("user_id", userID))
			return newServiceError(opDeleteUser, "assignment_count_failed", err)
		}
		if assignments > 0 {
			return newValidationError("user is still assigned to %d task(s); unassign them first", assignments)
		}

		rows, err := tx.Users().Delete(ctx, userID)
		if err != nil {
			s.logError(opDeleteUser, "user_delete_failed", err, zap.String("user_id", userID))
			return newServiceError(opDeleteUser, "user_delete_failed", err)
		}
		deleted = rows > 0
		return nil
	})
	if txErr != nil {
		return false, txErr
	}
	return deleted, nil
}
