package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a KeyedLimiter
type Config struct {
	Rate      rate.Limit
	Burst     int
	ExpiresIn time.Duration
}

// PerWindow returns a config allowing limit events per window, refilled evenly
func PerWindow(limit int, window time.Duration) Config {
	if limit < 1 {
		limit = 1
	}
	return Config{
		Rate:      rate.Every(window / time.Duration(limit)),
		Burst:     limit,
		ExpiresIn: window,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key in process memory.
// Buckets idle for longer than ExpiresIn are dropped.
type KeyedLimiter struct {
	mu          sync.Mutex
	cfg         Config
	visitors    map[string]*visitor
	lastCleanup time.Time
	now         func() time.Time
}

// NewKeyedLimiter creates a limiter
func NewKeyedLimiter(cfg Config) *KeyedLimiter {
	if cfg.ExpiresIn <= 0 {
		cfg.ExpiresIn = 3 * time.Minute
	}
	return &KeyedLimiter{
		cfg:         cfg,
		visitors:    make(map[string]*visitor),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether one more event for key may happen now
func (l *KeyedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	if now.Sub(l.lastCleanup) > l.cfg.ExpiresIn {
		l.cleanup(now)
	}

	return v.limiter.AllowN(now, 1), nil
}

func (l *KeyedLimiter) cleanup(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.ExpiresIn {
			delete(l.visitors, key)
		}
	}
	l.lastCleanup = now
}
