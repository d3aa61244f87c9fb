// Package tokencache is the Redis-backed session cache for the auth core.
// It holds two independent record families:
//
//   - refresh_token:{subject} holds the principal's current refresh token,
//     TTL = refresh-token lifetime. At most one live entry per principal;
//     writes overwrite unconditionally (single active session policy).
//   - blacklist:{access_token} is an existence-only revocation marker written
//     at logout, TTL = remaining access-token lifetime. Self-expires.
//
// Every operation degrades when Redis is unreachable: reads fail open
// (IsRevoked reports not revoked, GetRefresh reports a miss) and writes fail
// silent (logged as warnings, never returned as errors). This trades strict
// revocation for availability: a cache outage must not lock every admin out,
// and login/logout must still succeed. Do not tighten this to fail-closed
// without revisiting that trade-off.
package tokencache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onicare/admin-backend/internal/logging"
	"github.com/onicare/admin-backend/internal/metrics"
)

const (
	refreshPrefix   = "refresh_token:"
	blacklistPrefix = "blacklist:"
)

// ErrCacheUnavailable tags Redis transport failures in log output and Ping
// results. It never crosses the package boundary on the read/write paths.
var ErrCacheUnavailable = errors.New("session cache unavailable")

// Store is the session cache client. Construct once at process startup and
// inject it; it holds no global state and is safe for concurrent use.
type Store struct {
	rdb              redis.UniversalClient
	log              logging.Logger
	metrics          *metrics.Registry
	defaultRevokeTTL time.Duration
}

// NewStore builds a Store over the given Redis client. defaultRevokeTTL is
// the blacklist TTL used when a caller cannot compute the token's remaining
// lifetime; it should equal the configured access-token lifetime.
func NewStore(rdb redis.UniversalClient, log logging.Logger, reg *metrics.Registry, defaultRevokeTTL time.Duration) *Store {
	if defaultRevokeTTL <= 0 {
		defaultRevokeTTL = time.Hour
	}
	return &Store{
		rdb:              rdb,
		log:              log,
		metrics:          reg,
		defaultRevokeTTL: defaultRevokeTTL,
	}
}

func refreshKey(subject string) string { return refreshPrefix + subject }

func blacklistKey(token string) string { return blacklistPrefix + token }

// PutRefresh stores subject's current refresh token, unconditionally
// overwriting any prior entry. Write failures are absorbed.
func (s *Store) PutRefresh(ctx context.Context, subject, token string, ttl time.Duration) {
	if err := s.rdb.Set(ctx, refreshKey(subject), token, ttl).Err(); err != nil {
		s.unavailable(ctx, "put_refresh", err)
	}
}

// GetRefresh returns subject's current refresh token. The second return is
// false on a miss and on cache outage; callers cannot distinguish the two.
// An unreachable cache means the presented refresh token cannot be validated,
// so the refresh is rejected.
func (s *Store) GetRefresh(ctx context.Context, subject string) (string, bool) {
	val, err := s.rdb.Get(ctx, refreshKey(subject)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.unavailable(ctx, "get_refresh", err)
		}
		return "", false
	}
	return val, true
}

// DeleteRefresh removes subject's session record. No-op if absent; failures
// are absorbed (logout must not fail visibly).
func (s *Store) DeleteRefresh(ctx context.Context, subject string) {
	if err := s.rdb.Del(ctx, refreshKey(subject)).Err(); err != nil {
		s.unavailable(ctx, "delete_refresh", err)
	}
}

// RevokeAccess marks an access token invalid before its natural expiry.
// ttl should be the token's remaining lifetime; non-positive values fall
// back to the full configured access lifetime. Failures are absorbed.
func (s *Store) RevokeAccess(ctx context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultRevokeTTL
	}
	if err := s.rdb.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
		s.unavailable(ctx, "revoke_access", err)
	}
}

// IsRevoked reports whether token has been revoked. Fails open: on cache
// outage it returns false so a structurally valid token is still accepted.
func (s *Store) IsRevoked(ctx context.Context, token string) bool {
	n, err := s.rdb.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		s.unavailable(ctx, "is_revoked", err)
		return false
	}
	return n > 0
}

// Ping returns a point-in-time cache availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return time.Since(start), errors.Join(ErrCacheUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) unavailable(ctx context.Context, op string, err error) {
	s.metrics.Inc(metrics.CacheUnavailable)
	if s.log != nil {
		s.log.Warn(ctx, "session cache unavailable", "op", op, "err", err.Error())
	}
}
