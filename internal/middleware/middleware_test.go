package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/auth"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubTokens struct {
	actors map[string]auth.Actor
	err    error
}

func (s *stubTokens) ValidateToken(_ context.Context, token string) (auth.Actor, error) {
	if s.err != nil {
		return auth.Actor{}, s.err
	}
	a, ok := s.actors[token]
	if !ok {
		return auth.Actor{}, auth.ErrInvalidToken
	}
	return a, nil
}

// okHandler writes 200 and the actor name (for assertions).
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if a, ok := ActorFromCtx(r.Context()); ok {
		w.Write([]byte(a.Name()))
	}
})

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestBearerAuth(t *testing.T) {
	logger, _ := test.NewNullLogger()
	user := auth.Actor{AccountID: uuid.New(), Role: auth.RoleUser}
	tokens := &stubTokens{actors: map[string]auth.Actor{
		"user-token":  user,
		"admin-token": {Role: auth.RoleAdmin},
	}}
	h := BearerAuth(tokens, logger)(okHandler)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"user", "Bearer user-token", http.StatusOK, user.AccountID.String()},
		{"lowercase scheme", "bearer admin-token", http.StatusOK, auth.AdminSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestBearerAuthBanned(t *testing.T) {
	logger, _ := test.NewNullLogger()
	tokens := &stubTokens{err: apperr.Validation(apperr.ReasonAccountBanned, "account is banned")}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	BearerAuth(tokens, logger)(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleGates(t *testing.T) {
	user := auth.Actor{AccountID: uuid.New(), Role: auth.RoleUser}
	admin := auth.Actor{Role: auth.RoleAdmin}

	serve := func(h http.Handler, ctx context.Context) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		return rec.Code
	}
	bg := context.Background()
	assert.Equal(t, http.StatusUnauthorized, serve(RequireAdmin(okHandler), bg))
	assert.Equal(t, http.StatusForbidden, serve(RequireAdmin(okHandler), WithActor(bg, user)))
	assert.Equal(t, http.StatusOK, serve(RequireAdmin(okHandler), WithActor(bg, admin)))
	assert.Equal(t, http.StatusForbidden, serve(RequireUser(okHandler), WithActor(bg, admin)))
	assert.Equal(t, http.StatusOK, serve(RequireUser(okHandler), WithActor(bg, user)))
}

// ---------------------------------------------------------------------------
// Idempotency
// ---------------------------------------------------------------------------

func TestIdempotency(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var calls atomic.Int32
	status := http.StatusCreated
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
	})
	h := Idempotency(NewMemoryKeyStore(), time.Hour, logger)(inner)
	actor := auth.Actor{AccountID: uuid.New(), Role: auth.RoleUser}

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/me/withdrawals", nil)
		req = req.WithContext(WithActor(req.Context(), actor))
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, do("k1"))
	assert.Equal(t, http.StatusConflict, do("k1"))
	assert.EqualValues(t, 1, calls.Load())

	// Without a key nothing is deduplicated.
	assert.Equal(t, http.StatusCreated, do(""))
	assert.Equal(t, http.StatusCreated, do(""))

	// Failed requests release their key.
	status = http.StatusBadRequest
	assert.Equal(t, http.StatusBadRequest, do("k2"))
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, do("k2"))
}

func TestMemoryKeyStoreExpiry(t *testing.T) {
	s := NewMemoryKeyStore()
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := s.Claim(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Claim(ctx, "a", time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = s.Claim(ctx, "a", time.Minute)
	assert.True(t, ok)
}

// TestRedisKeyStore runs against a real server when REDIS_ADDR is set.
func TestRedisKeyStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	s := NewRedisKeyStore(client, "test:idempotency:"+uuid.NewString()+":")
	ctx := context.Background()

	ok, err := s.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Release(ctx, "k"))
	ok, err = s.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil))

	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, "/api/v1/tiers", entry.Data["path"])
}

func TestRecover(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, hook.LastEntry())
}
