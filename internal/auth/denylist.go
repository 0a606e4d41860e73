package auth

import (
	"context"
	"sync"
	"time"
)

// Denylist remembers revoked session ids in process until their tokens expire.
// It serves single-instance deployments without Redis.
type Denylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewDenylist creates an empty denylist
func NewDenylist() *Denylist {
	return &Denylist{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// RevokeSession marks the session id as revoked until the given time
func (d *Denylist) RevokeSession(ctx context.Context, id string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, exp := range d.revoked {
		if !exp.After(now) {
			delete(d.revoked, key)
		}
	}
	if until.After(now) {
		d.revoked[id] = until
	}
	return nil
}

// IsSessionRevoked reports whether the session id was revoked
func (d *Denylist) IsSessionRevoked(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.revoked[id]
	return ok && exp.After(d.now()), nil
}

// Len returns the number of revocations still held
func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.revoked)
}
