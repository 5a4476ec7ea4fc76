package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter decides whether the client identified by key may make another
// request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket per client.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	window   time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryLimiter allows perMinute requests per client per minute, with
// bursts up to perMinute.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	rl := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		window:   time.Minute,
		stop:     make(chan struct{}),
	}

	// Cleanup goroutine
	go func() {
		ticker := time.NewTicker(rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.mu.Lock()
				for key, v := range rl.visitors {
					if time.Since(v.lastSeen) > rl.window {
						delete(rl.visitors, key)
					}
				}
				rl.mu.Unlock()
			}
		}
	}()

	return rl
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow(), nil
}

// Close stops the cleanup goroutine.
func (rl *MemoryLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// RedisLimiter is a fixed-window counter shared by every replica using the
// same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  perMinute,
		window: time.Minute,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := rl.now().UnixNano() / int64(rl.window)
	redisKey := rl.prefix + key + ":" + strconv.FormatInt(bucket, 10)

	var incr *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, rl.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(rl.limit), nil
}

// RateLimit rejects clients over their limit with 429. Authenticated
// clients are keyed by subject, others by IP. Limiter errors let the request
// through.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if id := GetClientID(r.Context()); id != "" {
		return "sub:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
