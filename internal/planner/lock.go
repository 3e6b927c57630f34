package planner

import (
	"go.uber.org/zap"
)

// checkLockToken fails when the caller's last known token is not the stored one.
func checkLockToken(entity, id string, stored, expected int64) error {
	if stored != expected {
		return newOptimisticLockError(entity, id)
	}
	return nil
}

// lockedWrite bundles the storage calls of one guarded write.
type lockedWrite struct {
	entity        string
	id            string
	expected      int64
	conditional   func() (int64, error)
	latest        func() (int64, bool, error)
	unconditional func() (int64, error)
}

// writeLocked performs a conditional write and disambiguates a zero-row result.
// It reports false when the entity no longer exists.
func (s *Service) writeLocked(operation string, write lockedWrite) (bool, error) {
	reason := write.entity + "_update_failed"
	idField := zap.String(write.entity+"_id", write.id)

	rows, err := write.conditional()
	if err != nil {
		s.logError(operation, reason, err, idField)
		return false, newServiceError(operation, reason, err)
	}
	if rows > 0 {
		return true, nil
	}

	latest, found, err := write.latest()
	if err != nil {
		s.logError(operation, "lock_token_lookup_failed", err, idField)
		return false, newServiceError(operation, "lock_token_lookup_failed", err)
	}
	if !found {
		return false, nil
	}
	if latest != write.expected {
		return false, newOptimisticLockError(write.entity, write.id)
	}

	// The token still matches, so the miss was transient. Write by id only.
	rows, err = write.unconditional()
	if err != nil {
		s.logError(operation, reason, err, idField)
		return false, newServiceError(operation, reason, err)
	}
	return rows > 0, nil
}
