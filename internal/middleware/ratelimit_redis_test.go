package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/chatvault/server-go/internal/model"
)

// unreachableRedis returns a client that fails every command immediately,
// with retries disabled so the failure path stays fast.
func unreachableRedis() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:       "127.0.0.1:1",
		MaxRetries: -1,
	})
}

func TestRedisRateLimiter_Check(t *testing.T) {
	t.Run("fails open when redis is unreachable", func(t *testing.T) {
		limiter := NewRedisRateLimiter(unreachableRedis())

		allowed, remaining, resetAt := limiter.Check(context.Background(), "user-1", 60)

		assert.True(t, allowed)
		assert.Equal(t, 59, remaining)
		assert.Greater(t, resetAt, int64(0))
	})
}

func TestRedisRateLimitMiddleware(t *testing.T) {
	mw := NewRedisRateLimitMiddleware(unreachableRedis())

	t.Run("passes through requests without a user", func(t *testing.T) {
		nextCalled := false
		wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("sets rate limit headers for an authenticated request", func(t *testing.T) {
		wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		ctx := context.WithValue(req.Context(), UserContextKey, &model.User{ID: "user-1", RateLimitPerMin: 30})
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "29", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("substitutes the default limit for users without one", func(t *testing.T) {
		wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		ctx := context.WithValue(req.Context(), UserContextKey, &model.User{ID: "user-2"})
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	})
}
