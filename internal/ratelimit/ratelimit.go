// Package ratelimit throttles requests per client key, backed by Redis when
// available and by in-process token buckets otherwise.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"appsuite/internal/apperr"
	"appsuite/internal/cache"
)

type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type windowCounter interface {
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) bool
}

// Redis is a fixed-window limiter shared by every replica.
type Redis struct {
	counter windowCounter
	scope   string
	limit   int
	window  time.Duration
}

func NewRedis(counter windowCounter, scope string, perMinute int) *Redis {
	return &Redis{counter: counter, scope: scope, limit: perMinute, window: time.Minute}
}

func (l *Redis) Allow(ctx context.Context, key string) bool {
	return !l.counter.IsRateLimited(ctx, l.scope+":"+key, l.limit, l.window)
}

// New returns a Redis limiter when rc is connected and an in-process one
// (swept every minute until ctx is done) otherwise.
func New(ctx context.Context, rc *cache.Client, scope string, perMinute int) Limiter {
	if rc != nil {
		return NewRedis(rc, scope, perMinute)
	}
	l := NewLocal(perMinute)
	l.StartSweeper(ctx, time.Minute)
	return l
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local keeps one token bucket per key in memory.
type Local struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

func NewLocal(perMinute int) *Local {
	return &Local{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

func (l *Local) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the idle timeout.
func (l *Local) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	n := 0
	for k, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, k)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep every interval until ctx is done.
func (l *Local) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// ClientIP is the default key: the request's remote host.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware answers 429 once l refuses the request's key.
func Middleware(l Limiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !l.Allow(r.Context(), k) {
				slog.Warn("Rate limit exceeded", "key", k, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				apperr.Respond(w, r, apperr.RateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
