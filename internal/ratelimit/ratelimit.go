// Package ratelimit provides per-IP request throttling middleware for abuse
// prone endpoints (contact form, admin login).
package ratelimit

import (
	"fmt"
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/swellway/swellway-api/internal/common"
)

// Middleware builds a throttling middleware from a formatted rate such as
// "5-H" or "10-M". With a Redis client the window is shared across instances;
// without one it falls back to an in-memory store.
func Middleware(client *redis.Client, formatted, prefix string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}

	var store limiter.Store
	if client != nil {
		store, err = limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix: "limiter:" + prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("ratelimit: redis store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	middleware := mhttp.NewMiddleware(
		limiter.New(store, rate, limiter.WithTrustForwardHeader(false)),
		mhttp.WithLimitReachedHandler(limitReached),
	)
	return middleware.Handler, nil
}

func limitReached(w http.ResponseWriter, r *http.Request) {
	common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, slow down", nil)
}
