package state

import "time"

// Lock is the record of an exclusive hold on a deployment's state.
// Exactly one live lock exists per deployment unit; the TTL bounds the
// blast radius of a crashed holder, since an expired lock may be
// reclaimed by a new one.
type Lock struct {
	ID         string        `json:"id"`
	Holder     string        `json:"holder"`
	AcquiredAt time.Time     `json:"acquiredAt"`
	TTL        time.Duration `json:"ttl"`
}

// Expired reports whether the lock's TTL has elapsed at now.
func (l *Lock) Expired(now time.Time) bool {
	return now.After(l.AcquiredAt.Add(l.TTL))
}

// DefaultLockTTL is how long a lock is honored before a new holder may
// reclaim it.
const DefaultLockTTL = 10 * time.Minute
