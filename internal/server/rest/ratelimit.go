package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
)

const rateLimitKeyPrefix = "ratelimit:"

// Limiter decides whether one more request from key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter shared by every server instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := rateLimitKeyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}
	// A counter without expiry opens the window, including one left behind
	// by an earlier failed Expire.
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("redis expire: %w", err)
		}
	}
	return incr.Val() <= int64(l.limit), nil
}

type visitor struct {
	limiter     *rate.Limiter
	windowStart time.Time
	lastSeen    time.Time
}

// MemoryLimiter is a per-key fixed window: limit requests per window,
// counted from the first request of the window.
type MemoryLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     int
	window    time.Duration
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit < 1 {
		limit = 1
	}
	return &MemoryLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		ttl:      window * 3,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.ttl {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{}
		l.visitors[key] = v
	}
	// Each window gets a full bucket that does not refill before the window
	// ends, so at most limit requests pass per window.
	if v.limiter == nil || now.Sub(v.windowStart) >= l.window {
		v.limiter = rate.NewLimiter(rate.Every(l.window), l.limit)
		v.windowStart = now
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

const fallbackWarnInterval = time.Minute

// FallbackLimiter consults primary and switches to secondary when primary errors.
type FallbackLimiter struct {
	primary   Limiter
	secondary Limiter
	logger    logging.Logger

	mu         sync.Mutex
	lastWarn   time.Time
	suppressed int
	now        func() time.Time
}

func NewFallbackLimiter(primary, secondary Limiter, l logging.Logger) *FallbackLimiter {
	return &FallbackLimiter{
		primary:   primary,
		secondary: secondary,
		logger:    l.With("module", "ratelimit"),
		now:       time.Now,
	}
}

func (l *FallbackLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := l.primary.Allow(ctx, key)
	if err == nil {
		return ok, nil
	}
	l.warn(ctx, err)
	return l.secondary.Allow(ctx, key)
}

// warn logs primary failures at most once per fallbackWarnInterval.
func (l *FallbackLimiter) warn(ctx context.Context, err error) {
	l.mu.Lock()
	now := l.now()
	if !l.lastWarn.IsZero() && now.Sub(l.lastWarn) < fallbackWarnInterval {
		l.suppressed++
		l.mu.Unlock()
		return
	}
	suppressed := l.suppressed
	l.lastWarn = now
	l.suppressed = 0
	l.mu.Unlock()

	l.logger.Warn(ctx, "primary rate limiter failed, using in-process limiter", "error", err, "suppressed", suppressed)
}

// rateLimit rejects clients over the limit with 429. Limiter errors let the
// request through.
func (h *handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		ok, err := h.limiter.Allow(r.Context(), ip)
		if err != nil {
			h.logger.Warn(r.Context(), "rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			h.logger.Warn(r.Context(), "rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(h.limitWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: fmt.Sprintf("Rate limit exceeded: %d per minute", h.limitPerMinute)})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address of the connection.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
