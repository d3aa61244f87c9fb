package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/onicare/admin-backend/internal/auth"
	"github.com/onicare/admin-backend/internal/authtoken"
	"github.com/onicare/admin-backend/internal/logging"
	"github.com/onicare/admin-backend/internal/metrics"
	"github.com/onicare/admin-backend/internal/store"
	"github.com/onicare/admin-backend/internal/tokencache"
)

type memUsers struct {
	mu      sync.RWMutex
	byEmail map[string]*store.AdminUser
	byID    map[int64]*store.AdminUser
}

func (p *memUsers) GetByEmail(_ context.Context, email string) (*store.AdminUser, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if u, okUser := p.byEmail[email]; okUser {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (p *memUsers) GetActiveByID(_ context.Context, id int64) (*store.AdminUser, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if u, okUser := p.byID[id]; okUser && u.Status == store.StatusActive {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (p *memUsers) TouchLastLogin(context.Context, int64) error { return nil }

func (p *memUsers) InsertLoginLog(context.Context, store.LoginLog) error { return nil }

type apiFixture struct {
	router *gin.Engine
	codec  *authtoken.Codec
	cache  *tokencache.Store
	mr     *miniredis.Miniredis
	now    *time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Unix(1700000000, 0)
	fix := &apiFixture{now: &now}

	codec, err := authtoken.NewCodec(authtoken.Config{
		Secret:     []byte("httpapi-test-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        func() time.Time { return *fix.now },
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	fix.codec = codec

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	fix.mr = mr

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	reg := metrics.NewRegistry()
	fix.cache = tokencache.NewStore(rdb, logging.Discard(), reg, time.Hour)

	hash, err := auth.HashPassword("correct-horse", 4)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &store.AdminUser{
		ID:           42,
		Email:        "alice@example.com",
		PasswordHash: hash,
		Name:         "Alice",
		Role:         "admin",
		Status:       store.StatusActive,
	}
	users := &memUsers{
		byEmail: map[string]*store.AdminUser{user.Email: user},
		byID:    map[int64]*store.AdminUser{user.ID: user},
	}

	svc, err := auth.NewService(auth.Deps{
		Users:        users,
		Cache:        fix.cache,
		Codec:        codec,
		Organization: "OniCare HQ",
		Logger:       logging.Discard(),
		Metrics:      reg,
		Now:          func() time.Time { return *fix.now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	fix.router = NewRouter(Deps{
		Auth:    svc,
		Cache:   fix.cache,
		Codec:   codec,
		Metrics: reg,
		Logger:  logging.Discard(),
	})
	return fix
}

func (f *apiFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, w.Body.String())
	}
	return resp
}

func (f *apiFixture) login(t *testing.T) (access, refresh string) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"email": "alice@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	data := resp.Data.(map[string]any)
	tokens := data["tokens"].(map[string]any)
	return tokens["access_token"].(string), tokens["refresh_token"].(string)
}

func TestLoginEndpoint(t *testing.T) {
	fix := newAPIFixture(t)

	w := fix.do(t, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"email": "alice@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	if !resp.Success || resp.Error != nil {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	data := resp.Data.(map[string]any)
	user := data["user"].(map[string]any)
	if user["email"] != "alice@example.com" || user["organization"] != "OniCare HQ" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	tokens := data["tokens"].(map[string]any)
	if tokens["token_type"] != "bearer" || tokens["expires_in"].(float64) != 3600 {
		t.Fatalf("unexpected token metadata: %+v", tokens)
	}

	ac := fix.codec.Decode(tokens["access_token"].(string))
	if !ac.Valid() || ac.Claims.ExpiresAt.Unix()-ac.Claims.IssuedAt.Unix() != 3600 {
		t.Fatalf("unexpected access token: %+v", ac)
	}
	rc := fix.codec.Decode(tokens["refresh_token"].(string))
	if !rc.Valid() || rc.Claims.ExpiresAt.Unix()-rc.Claims.IssuedAt.Unix() != 604800 {
		t.Fatalf("unexpected refresh token: %+v", rc)
	}
}

func TestLoginEndpointRejectionsLookAlike(t *testing.T) {
	fix := newAPIFixture(t)

	bodies := []gin.H{
		{"email": "alice@example.com", "password": "wrong"},
		{"email": "nobody@example.com", "password": "correct-horse"},
	}
	var seen []Response
	for _, body := range bodies {
		w := fix.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d for %v", w.Code, body)
		}
		resp := decodeEnvelope(t, w)
		if resp.Success || resp.Error == nil || resp.Error.Code != CodeAuthError {
			t.Fatalf("unexpected envelope: %+v", resp)
		}
		seen = append(seen, resp)
	}
	if seen[0].Error.Message != seen[1].Error.Message {
		t.Fatalf("rejection messages differ: %q vs %q",
			seen[0].Error.Message, seen[1].Error.Message)
	}
}

func TestLoginEndpointValidation(t *testing.T) {
	fix := newAPIFixture(t)

	w := fix.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeEnvelope(t, w)
	if resp.Error == nil || resp.Error.Code != CodeValidationError {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestRefreshEndpointRotation(t *testing.T) {
	fix := newAPIFixture(t)
	_, rt0 := fix.login(t)

	*fix.now = fix.now.Add(time.Minute)
	w := fix.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": rt0})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w.Code, w.Body.String())
	}
	pair := decodeEnvelope(t, w).Data.(map[string]any)
	rt1 := pair["refresh_token"].(string)
	if rt1 == rt0 {
		t.Fatal("rotation must issue a new refresh token")
	}

	// the rotated-away token no longer works
	*fix.now = fix.now.Add(time.Minute)
	w = fix.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": rt0})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("stale refresh status = %d", w.Code)
	}

	w = fix.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": rt1})
	if w.Code != http.StatusOK {
		t.Fatalf("rotated refresh status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestVerifyEndpoint(t *testing.T) {
	fix := newAPIFixture(t)
	access, refresh := fix.login(t)

	w := fix.do(t, http.MethodGet, "/api/v1/auth/verify", access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", w.Code, w.Body.String())
	}
	data := decodeEnvelope(t, w).Data.(map[string]any)
	if data["id"].(float64) != 42 || data["email"] != "alice@example.com" || data["role"] != "admin" {
		t.Fatalf("unexpected identity payload: %+v", data)
	}

	// no credentials
	if w := fix.do(t, http.MethodGet, "/api/v1/auth/verify", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous verify status = %d", w.Code)
	}

	// a refresh token is not an access token
	if w := fix.do(t, http.MethodGet, "/api/v1/auth/verify", refresh, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh-as-access status = %d", w.Code)
	}

	// garbage
	if w := fix.do(t, http.MethodGet, "/api/v1/auth/verify", "not.a.token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage verify status = %d", w.Code)
	}
}

func TestLogoutEndpointRevokes(t *testing.T) {
	fix := newAPIFixture(t)
	access, refresh := fix.login(t)

	w := fix.do(t, http.MethodPost, "/api/v1/auth/logout", access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body %s", w.Code, w.Body.String())
	}
	if !decodeEnvelope(t, w).Success {
		t.Fatal("logout envelope should report success")
	}

	if !fix.mr.Exists("blacklist:" + access) {
		t.Fatal("access token should be blacklisted")
	}
	if fix.mr.Exists("refresh_token:42") {
		t.Fatal("session record should be gone")
	}

	// the revoked token is now rejected by the gate
	if w := fix.do(t, http.MethodGet, "/api/v1/auth/verify", access, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("verify after logout status = %d", w.Code)
	}
	// and the refresh token is dead too
	if w := fix.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		gin.H{"refresh_token": refresh}); w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	fix := newAPIFixture(t)

	w := fix.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, body %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"session_cache":"up"`) {
		t.Fatalf("expected cache up in %s", body)
	}

	fix.mr.Close()
	w = fix.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health with cache down status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Fatalf("expected degraded report, got %s", w.Body.String())
	}
}
