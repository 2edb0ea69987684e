package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/utils"
)

// CounterStore counts events per key within a rolling window. Implementations
// must be safe for concurrent use; the Redis implementation shares counts
// across replicas so the limit holds fleet-wide.
type CounterStore interface {
	// Incr increments key and returns the new count. The key expires
	// window after its first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounterStore implements CounterStore on a shared Redis instance.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore connects to Redis and verifies the connection.
func NewRedisCounterStore(ctx context.Context, addr, password string) (*RedisCounterStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCounterStore{client: client}, nil
}

var _ CounterStore = (*RedisCounterStore)(nil)

// Incr increments the key, setting its expiry on first increment.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// memoryCounter is one key's window state.
type memoryCounter struct {
	count   int64
	resetAt time.Time
}

// MemoryCounterStore implements CounterStore in process memory. Counts are
// per-replica; used when no Redis address is configured.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryCounterStore creates an in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*memoryCounter)}
}

var _ CounterStore = (*MemoryCounterStore)(nil)

// Incr increments the key within its window, resetting expired windows.
// Expired entries for other keys are swept opportunistically.
func (s *MemoryCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.counters) > 10000 {
		for k, c := range s.counters {
			if now.After(c.resetAt) {
				delete(s.counters, k)
			}
		}
	}

	c, ok := s.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &memoryCounter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// RateLimit limits each client IP to limit requests per window on the routes
// it wraps. route namespaces the counter so endpoints don't share budgets.
// Counter store failures fail open: dropping legitimate uploads because
// Redis blinked is worse than briefly losing the limit.
func RateLimit(store CounterStore, route string, limit int, window time.Duration, trustedProxies string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := utils.GetClientIP(r, trustedProxies)
			count, err := store.Incr(r.Context(), "ratelimit:"+route+":"+ip, window)
			if err != nil {
				slog.Warn("rate limit counter unavailable", "route", route, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				slog.Warn("rate limit exceeded",
					"route", route,
					"ip", ip,
					"count", count,
					"limit", limit,
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.ErrorResponse{
					Error: "Too many requests",
					Code:  "RATE_LIMITED",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
