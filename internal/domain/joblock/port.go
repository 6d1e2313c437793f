package joblock

import "context"

type Repo interface {
	// Acquire takes the (kind, key) lock for holder. Returns false when
	// another live holder owns it; a row past the lease TTL is reclaimed
	// in the same round trip.
	Acquire(ctx context.Context, kind, key, holder string) (bool, error)
	// Release drops the holder's lock. Releasing a row that is missing
	// or owned by someone else is a no-op, so cleanup paths can call it
	// unconditionally.
	Release(ctx context.Context, kind, key, holder string) error
}
