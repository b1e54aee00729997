package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Result describes one admission decision.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter admits or rejects a hit for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Memory is a per-key token bucket. Idle buckets expire from a go-cache
// store, so memory stays bounded by the set of recently active keys.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets *gocache.Cache
}

// NewMemory allows limit hits per window per key, refilling continuously.
func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: gocache.New(2*window, window),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	now := m.now()
	lim := m.bucket(key)
	if lim.AllowN(now, 1) {
		return Result{Allowed: true, Remaining: int64(math.Floor(lim.TokensAt(now)))}, nil
	}
	r := lim.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return Result{Allowed: false, RetryAfter: wait}, nil
}

func (m *Memory) bucket(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		m.buckets.SetDefault(key, lim)
		return lim
	}
	every := m.window / time.Duration(m.limit)
	lim := rate.NewLimiter(rate.Every(every), m.limit)
	m.buckets.SetDefault(key, lim)
	return lim
}

// Redis is a fixed-window counter (INCR + EXPIRE) shared by every replica.
type Redis struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	if prefix == "" {
		prefix = "rl:"
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{
		client: client,
		prefix: prefix,
		max:    int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (l *Redis) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis: %w", err)
	}

	hits := incr.Val()
	res := Result{Allowed: hits <= l.max, Remaining: max(l.max-hits, 0)}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.window).Sub(now)
	}
	return res, nil
}
