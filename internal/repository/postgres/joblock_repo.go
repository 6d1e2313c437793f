package postgres

import (
	"context"
	"fmt"
	"time"

	"pagewatch/internal/domain/joblock"
)

var _ joblock.Repo = (*JobLockRepoImpl)(nil)

type JobLockRepoImpl struct {
	db  *DB
	ttl time.Duration
}

// NewJobLockRepo builds the lock table accessor. ttl is the lease after
// which a holder is presumed crashed and its row may be taken over; it
// should be a generous multiple of the longest expected job duration.
func NewJobLockRepo(db *DB, ttl time.Duration) *JobLockRepoImpl {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JobLockRepoImpl{db: db, ttl: ttl}
}

const (
	// The primary key on (job_kind, lock_key) makes the insert race-free;
	// the conditional update reclaims a lease left behind by a crash.
	qLockAcquire = `
INSERT INTO job_locks (job_kind, lock_key, holder, acquired_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (job_kind, lock_key) DO UPDATE
SET holder = EXCLUDED.holder, acquired_at = NOW()
WHERE job_locks.acquired_at < NOW() - MAKE_INTERVAL(secs => $4);
`

	qLockRelease = `
DELETE FROM job_locks
WHERE job_kind = $1 AND lock_key = $2 AND holder = $3;
`
)

func (r *JobLockRepoImpl) Acquire(ctx context.Context, kind, key, holder string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Pool.Exec(ctx, qLockAcquire, kind, key, holder, r.ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

// Release is best-effort: deleting a row that is gone, or that a lease
// reclaim handed to another holder, affects zero rows and is not an error.
func (r *JobLockRepoImpl) Release(ctx context.Context, kind, key, holder string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qLockRelease, kind, key, holder); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
