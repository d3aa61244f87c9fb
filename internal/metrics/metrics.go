// Package metrics keeps in-process counters for the auth core. Counters are
// fixed-slot atomics so the hot path stays allocation free.
package metrics

import "sync/atomic"

// ID selects a counter slot.
type ID uint16

const (
	// LoginSuccess counts successful credential logins.
	LoginSuccess ID = iota
	// LoginFailure counts rejected logins (unknown, inactive, bad password).
	LoginFailure
	// RefreshSuccess counts successful refresh-token rotations.
	RefreshSuccess
	// RefreshFailure counts rejected refresh attempts.
	RefreshFailure
	// RefreshReuse counts stale/superseded refresh tokens presented again.
	RefreshReuse
	// Logout counts logout requests.
	Logout
	// TokenRevoked counts access tokens rejected by the revocation list.
	TokenRevoked
	// CacheUnavailable counts session-cache calls degraded by the
	// fail-open/fail-silent policy.
	CacheUnavailable

	idCount
)

var names = [idCount]string{
	LoginSuccess:     "login_success",
	LoginFailure:     "login_failure",
	RefreshSuccess:   "refresh_success",
	RefreshFailure:   "refresh_failure",
	RefreshReuse:     "refresh_reuse",
	Logout:           "logout",
	TokenRevoked:     "token_revoked",
	CacheUnavailable: "cache_unavailable",
}

// Registry holds one atomic counter per ID. The zero value is not usable;
// construct with NewRegistry.
type Registry struct {
	counters [idCount]atomic.Uint64
}

// NewRegistry returns an empty counter registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Inc increments a counter. Nil registries are tolerated so call sites can
// leave metrics unwired in tests.
func (r *Registry) Inc(id ID) {
	if r == nil || id >= idCount {
		return
	}
	r.counters[id].Add(1)
}

// Value returns the current count for id.
func (r *Registry) Value(id ID) uint64 {
	if r == nil || id >= idCount {
		return 0
	}
	return r.counters[id].Load()
}

// Snapshot returns a point-in-time copy of all counters keyed by name.
func (r *Registry) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, idCount)
	if r == nil {
		return out
	}
	for id := ID(0); id < idCount; id++ {
		out[names[id]] = r.counters[id].Load()
	}
	return out
}
