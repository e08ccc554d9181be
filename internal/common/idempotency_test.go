package common

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdem(t *testing.T) Idem {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return Idem{R: client, TTL: time.Minute}
}

func TestIdemMiddleware(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
	})

	t.Run("duplicate key is rejected", func(t *testing.T) {
		hits.Store(0)
		wrapped := newIdem(t).Middleware(handler)

		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req.Header.Set("Idempotency-Key", "abc-123")

		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req.Clone(req.Context()))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")
		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("distinct keys both pass", func(t *testing.T) {
		hits.Store(0)
		wrapped := newIdem(t).Middleware(handler)

		for _, key := range []string{"key-a", "key-b"} {
			req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
			req.Header.Set("Idempotency-Key", key)
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusCreated, rec.Code)
		}
		assert.Equal(t, int64(2), hits.Load())
	})

	t.Run("missing header passes through", func(t *testing.T) {
		hits.Store(0)
		wrapped := newIdem(t).Middleware(handler)

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", nil))
			assert.Equal(t, http.StatusCreated, rec.Code)
		}
		assert.Equal(t, int64(2), hits.Load())
	})

	t.Run("nil redis passes through", func(t *testing.T) {
		hits.Store(0)
		wrapped := Idem{TTL: time.Minute}.Middleware(handler)

		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req.Header.Set("Idempotency-Key", "abc-123")
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestWriteError(t *testing.T) {
	t.Run("app error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, NotFound("booking not found", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
	})

	t.Run("unknown error maps to 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"INTERNAL"`)
	})
}
