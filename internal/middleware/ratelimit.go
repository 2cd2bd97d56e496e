package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// RateLimitResult is the outcome of one Allow call
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// RateLimiter decides whether the client identified by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// RedisRateLimiter is a fixed-window counter shared by every replica
type RedisRateLimiter struct {
	client *redis.Client
	config RateLimitConfig
}

// NewRedisRateLimiter creates a limiter backed by client
func NewRedisRateLimiter(client *redis.Client, config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, config: config}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	redisKey := fmt.Sprintf("%s:%s", l.config.KeyPrefix, key)
	result := RateLimitResult{Limit: l.config.RequestsPerWindow}

	// EXPIRE NX in the same transaction also repairs a key left without a TTL
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.config.Window)
		ttl = pipe.TTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to update rate limit counter: %w", err)
	}

	count := incr.Val()
	result.ResetAfter = ttl.Val()
	if result.ResetAfter < 0 {
		result.ResetAfter = l.config.Window
	}

	if count > int64(l.config.RequestsPerWindow) {
		return result, nil
	}

	result.Allowed = true
	result.Remaining = l.config.RequestsPerWindow - int(count)
	return result, nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryRateLimiter is a per-process token bucket per key. Buckets hold
// RequestsPerWindow tokens and refill over Window.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

// NewMemoryRateLimiter creates an in-process limiter
func NewMemoryRateLimiter(config RateLimitConfig) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(config.Window / time.Duration(config.RequestsPerWindow)),
		burst:    config.RequestsPerWindow,
	}
}

func (l *MemoryRateLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	result := RateLimitResult{Limit: l.burst}
	if v.limiter.AllowN(now, 1) {
		result.Allowed = true
		result.Remaining = int(v.limiter.TokensAt(now))
		return result, nil
	}

	reservation := v.limiter.ReserveN(now, 1)
	result.ResetAfter = reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return result, nil
}

// Cleanup forgets keys idle for longer than maxIdle
func (l *MemoryRateLimiter) Cleanup(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done
func (l *MemoryRateLimiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup(maxIdle)
			}
		}
	}()
}

// RateLimitMiddleware rejects clients over their limit with 429. Limiter
// failures let the request through.
func RateLimitMiddleware(limiter RateLimiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r)

			result, err := limiter.Allow(r.Context(), clientID)
			if err != nil {
				logger.Error("Rate limiter unavailable",
					zap.Error(err),
					zap.String("client_id", clientID),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				retryAfter := int(result.ResetAfter.Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.String("path", r.URL.Path),
					zap.Int("limit", result.Limit),
				)

				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				RespondWithError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller by user when authenticated, else by IP
func clientKey(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
