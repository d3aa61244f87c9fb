// Package auth orchestrates the session lifecycle: login issues a signed
// access/refresh pair, refresh rotates the pair, logout revokes the access
// token and drops the session record. Per principal the states are
// anonymous -> authenticated -> (rotated)* -> anonymous.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/onicare/admin-backend/internal/audit"
	"github.com/onicare/admin-backend/internal/authtoken"
	"github.com/onicare/admin-backend/internal/logging"
	"github.com/onicare/admin-backend/internal/metrics"
	"github.com/onicare/admin-backend/internal/store"
	"github.com/onicare/admin-backend/internal/tokencache"
)

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Profile is the denormalized principal snapshot returned at login and
// stamped into access-token claims.
type Profile struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
}

// LoginResult is the login response payload.
type LoginResult struct {
	User   Profile   `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Deps carries the collaborators of the Service. Everything is injected at
// construction; the service holds no global state.
type Deps struct {
	Users        store.AdminUsers
	Cache        *tokencache.Store
	Codec        *authtoken.Codec
	Organization string
	Logger       logging.Logger
	Audit        audit.Sink
	Metrics      *metrics.Registry
	Now          func() time.Time
}

// Service implements login, refresh-token rotation, and logout over the
// credential store and the session cache. Each operation is a short sequence
// of single-key cache calls plus at most one credential-store lookup; there
// is no cross-operation locking.
type Service struct {
	users   store.AdminUsers
	cache   *tokencache.Store
	codec   *authtoken.Codec
	org     string
	log     logging.Logger
	sink    audit.Sink
	metrics *metrics.Registry
	now     func() time.Time
}

// NewService validates deps and builds a Service.
func NewService(deps Deps) (*Service, error) {
	if deps.Users == nil || deps.Cache == nil || deps.Codec == nil {
		return nil, fmt.Errorf("auth service requires users, cache, and codec")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NoOpSink{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		users:   deps.Users,
		cache:   deps.Cache,
		codec:   deps.Codec,
		org:     deps.Organization,
		log:     deps.Logger,
		sink:    deps.Audit,
		metrics: deps.Metrics,
		now:     deps.Now,
	}, nil
}

// Login verifies credentials and issues a token pair. A missing principal,
// an inactive account, and a wrong password all fail with the same
// ErrAuthenticationFailed. The last-login touch and the login-log insert
// are best-effort and never fail the login.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	if user == nil || !user.Active() || !VerifyPassword(user.PasswordHash, password) {
		s.metrics.Inc(metrics.LoginFailure)
		s.emit(ctx, audit.EventLoginFailure, "", email, ErrAuthenticationFailed)
		return nil, ErrAuthenticationFailed
	}

	subject := strconv.FormatInt(user.ID, 10)
	profile := s.profileOf(user)

	pair, err := s.issuePair(ctx, subject, profile)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.Warn(ctx, "last-login update failed", "subject", subject, "err", err.Error())
	}
	logEntry := store.LoginLog{
		AdminID:   user.ID,
		Email:     user.Email,
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
	if err := s.users.InsertLoginLog(ctx, logEntry); err != nil {
		s.log.Warn(ctx, "login log write failed", "subject", subject, "err", err.Error())
	}

	s.metrics.Inc(metrics.LoginSuccess)
	s.emit(ctx, audit.EventLoginSuccess, subject, user.Email, nil)
	s.log.Info(ctx, "login", "subject", subject)

	return &LoginResult{User: profile, Tokens: *pair}, nil
}

// Refresh rotates a refresh token: the presented token must decode, must
// match the principal's current session record byte for byte, and the
// principal must still be active. Rotation overwrites the session record, so
// the presented token (and any older one) is invalidated as a side effect.
//
// Two concurrent refreshes with the same still-current token can both pass
// the match check before either overwrite lands; both then succeed and the
// last writer wins. The window is accepted: closing it needs an atomic
// compare-and-swap on the cache key, which would change the cache contract
// for a race that only hands out one extra (valid) pair to the same
// principal.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	res := s.codec.Decode(refreshToken)
	if !res.Valid() || res.Claims.Kind != authtoken.KindRefresh || res.Claims.Subject == "" {
		return nil, s.refreshFailure(ctx, "", ErrAuthenticationFailed)
	}
	subject := res.Claims.Subject

	current, ok := s.cache.GetRefresh(ctx, subject)
	if !ok || current != refreshToken {
		if ok {
			// a record exists but differs: the presented token was rotated
			// away already, likely reuse of a stale token
			s.metrics.Inc(metrics.RefreshReuse)
		}
		return nil, s.refreshFailure(ctx, subject, ErrAuthenticationFailed)
	}

	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, s.refreshFailure(ctx, subject, ErrAuthenticationFailed)
	}
	user, err := s.users.GetActiveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	if user == nil {
		return nil, s.refreshFailure(ctx, subject, ErrAuthenticationFailed)
	}

	pair, err := s.issuePair(ctx, subject, s.profileOf(user))
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(metrics.RefreshSuccess)
	s.emit(ctx, audit.EventRefreshSuccess, subject, user.Email, nil)
	return pair, nil
}

// Logout drops the principal's session record and blacklists the presented
// access token for its remaining lifetime. Both writes are best-effort and
// Logout never fails: the client discards its token copy regardless of
// whether the cache writes landed.
func (s *Service) Logout(ctx context.Context, claims *authtoken.Claims, accessToken string) {
	if claims == nil || accessToken == "" {
		return
	}
	subject := claims.Subject

	s.cache.DeleteRefresh(ctx, subject)

	remaining := s.codec.TTL(authtoken.KindAccess)
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Time.Sub(s.now())
	}
	s.cache.RevokeAccess(ctx, accessToken, remaining)

	s.metrics.Inc(metrics.Logout)
	s.metrics.Inc(metrics.TokenRevoked)
	s.emit(ctx, audit.EventLogout, subject, claims.Email, nil)
	s.log.Info(ctx, "logout", "subject", subject)
}

func (s *Service) profileOf(user *store.AdminUser) Profile {
	name := user.Name
	if name == "" {
		name = "Administrator"
	}
	role := user.Role
	if role == "" {
		role = "admin"
	}
	return Profile{
		ID:           user.ID,
		Email:        user.Email,
		Name:         name,
		Role:         role,
		Organization: s.org,
	}
}

// issuePair creates an access token carrying the full profile snapshot and
// a refresh token carrying only the subject, then overwrites the session
// record with the new refresh token. The overwrite is unconditional: one
// active session per principal, new logins supersede old ones on any device.
func (s *Service) issuePair(ctx context.Context, subject string, profile Profile) (*TokenPair, error) {
	access, err := s.codec.Issue(authtoken.Claims{
		Email:            profile.Email,
		Name:             profile.Name,
		Role:             profile.Role,
		Organization:     profile.Organization,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}, authtoken.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.codec.Issue(authtoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}, authtoken.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	s.cache.PutRefresh(ctx, subject, refresh, s.codec.TTL(authtoken.KindRefresh))

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.codec.TTL(authtoken.KindAccess).Seconds()),
	}, nil
}

func (s *Service) refreshFailure(ctx context.Context, subject string, err error) error {
	s.metrics.Inc(metrics.RefreshFailure)
	s.emit(ctx, audit.EventRefreshFailure, subject, "", err)
	return err
}

func (s *Service) emit(ctx context.Context, eventType, subject, email string, cause error) {
	ev := audit.Event{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   cause == nil,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	s.sink.Emit(ctx, ev)
}
