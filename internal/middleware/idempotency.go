package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/httpx"
)

// IdempotencyHeader carries the client-chosen request key.
const IdempotencyHeader = "Idempotency-Key"

// KeyStore remembers request keys for a TTL.
type KeyStore interface {
	// Claim records key and reports whether it was new.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisKeyStore shares claimed keys between instances.
type RedisKeyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisKeyStore(client redis.UniversalClient, keyPrefix string) *RedisKeyStore {
	if keyPrefix == "" {
		keyPrefix = "idempotency:"
	}
	return &RedisKeyStore{client: client, keyPrefix: keyPrefix}
}

// Claim uses SETNX with a TTL so check and set are one atomic step.
func (s *RedisKeyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisKeyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// MemoryKeyStore is the single-process KeyStore.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryKeyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	if len(s.keys)%256 == 0 {
		s.sweep(now)
	}
	return true, nil
}

func (s *MemoryKeyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *MemoryKeyStore) sweep(now time.Time) {
	for k, exp := range s.keys {
		if !now.Before(exp) {
			delete(s.keys, k)
		}
	}
}

// Idempotency rejects a replayed mutating request that carries an
// Idempotency-Key already seen for the same actor and route. Keys of
// requests that did not succeed are released so the client can retry.
// Requests without the header pass through.
func Idempotency(store KeyStore, ttl time.Duration, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(IdempotencyHeader)
			if raw == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			owner := "anonymous"
			if actor, ok := ActorFromCtx(r.Context()); ok {
				owner = actor.Name()
			}
			key := owner + ":" + r.Method + ":" + r.URL.Path + ":" + raw

			fresh, err := store.Claim(r.Context(), key, ttl)
			if err != nil {
				// Fail open: the ledger itself rejects double resolution.
				log.WithError(err).Warn("idempotency store unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !fresh {
				httpx.WriteJSON(w, http.StatusConflict, httpx.ErrorBody{
					Error:   "duplicate_request",
					Message: "a request with this Idempotency-Key was already processed",
				})
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			if sw.status < 200 || sw.status >= 300 {
				if err := store.Release(context.WithoutCancel(r.Context()), key); err != nil {
					log.WithError(err).Warn("release idempotency key")
				}
			}
		})
	}
}

// statusWriter records the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytes       int
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
