package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimit returns a fixed-window per-IP limiter backed by redis.
// Without redis the limiter passes everything through.
func RateLimit(redisClient *redis.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if redisClient == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("ratelimit:%s:%d", r.RemoteAddr, time.Now().Unix()/int64(window.Seconds()))

			count, err := redisClient.Incr(r.Context(), key).Result()
			if err != nil {
				log.Printf("[RATELIMIT] Redis error, allowing request: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				redisClient.Expire(r.Context(), key, window)
			}

			if count > int64(limit) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"Too many requests, try again later"}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
