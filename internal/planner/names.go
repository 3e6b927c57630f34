package planner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type lockedRecord interface {
	lockToken() int64
	recordName() string
}

func (p Project) lockToken() int64 { return p.UpdatedAtMillis }
func (p Project) recordName() string { return p.Name }
func (u User) lockToken() int64 { return u.UpdatedAtMillis }
func (u User) recordName() string { return u.Name }

// namedRecordStore is the slice of ProjectStore and UserStore a rename needs.
type namedRecordStore[T lockedRecord] interface {
	Find(ctx context.Context, id string) (*T, error)
	UpdateWhereUpdatedAt(ctx context.Context, id string, expectedUpdatedAt int64, changes NameChanges) (int64, error)
	Update(ctx context.Context, id string, changes NameChanges) (int64, error)
	UpdatedAt(ctx context.Context, id string) (int64, bool, error)
}

// renameLocked applies the optimistic lock protocol to a single-name entity.
func renameLocked[T lockedRecord](ctx context.Context, s *Service, store namedRecordStore[T], operation, entity, id string, expectedUpdatedAt time.Time, name Patch[string]) (*T, error) {
	nextName, nameSet := name.Get()
	if nameSet {
		normalized, err := normalizeName(entity, nextName)
		if err != nil {
			return nil, err
		}
		nextName = normalized
	}

	current, err := store.Find(ctx, id)
	if err != nil {
		s.logError(operation, entity+"_lookup_failed", err, zap.String(entity+"_id", id))
		return nil, newServiceError(operation, entity+"_lookup_failed", err)
	}
	if current == nil {
		return nil, nil
	}

	expected := expectedUpdatedAt.UnixMilli()
	if err := checkLockToken(entity, id, (*current).lockToken(), expected); err != nil {
		return nil, err
	}

	if !nameSet || nextName == (*current).recordName() {
		return current, nil
	}

	changes := NameChanges{Name: nextName, UpdatedAtMillis: s.nextToken(expected)}
	applied, err := s.writeLocked(operation, lockedWrite{
		entity:   entity,
		id:       id,
		expected: expected,
		conditional: func() (int64, error) {
			return store.UpdateWhereUpdatedAt(ctx, id, expected, changes)
		},
		latest: func() (int64, bool, error) {
			return store.UpdatedAt(ctx, id)
		},
		unconditional: func() (int64, error) {
			return store.Update(ctx, id, changes)
		},
	})
	if err != nil || !applied {
		return nil, err
	}

	updated, err := store.Find(ctx, id)
	if err != nil {
		s.logError(operation, entity+"_reload_failed", err, zap.String(entity+"_id", id))
		return nil, newServiceError(operation, entity+"_reload_failed", err)
	}
	return updated, nil
}
