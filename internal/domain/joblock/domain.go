package joblock

import "time"

const (
	KindCheck  = "check"
	KindDigest = "digest"
)

// Lock is a mutual-exclusion row for one logical unit of work. It exists
// only while held; a holder older than the repository's lease TTL is
// treated as crashed and its row is reclaimable.
type Lock struct {
	Kind       string    `json:"kind"`
	Key        string    `json:"key"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}
