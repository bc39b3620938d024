package ratelimit

import (
    "context"
    "sync"
    "time"
)

type bucket struct {
    tokens     float64
    capacity   float64
    refillRate float64 // tokens per second
    last       time.Time
}

// Limiter is a per-key token bucket with continuous refill. There is no
// background timer; tokens are recomputed on every call.
type Limiter struct {
    mu sync.Mutex
    m  map[string]*bucket
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket)} }

// refill must be called with l.mu held.
func (l *Limiter) refill(key string, capacity, refillPerSec float64, now time.Time) *bucket {
    b, ok := l.m[key]
    if !ok {
        b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
        l.m[key] = b
        return b
    }
    elapsed := now.Sub(b.last).Seconds()
    if elapsed > 0 {
        b.tokens += elapsed * b.refillRate
        if b.tokens > b.capacity { b.tokens = b.capacity }
        b.last = now
    }
    return b
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
    l.mu.Lock()
    b := l.refill(key, capacity, refillPerSec, time.Now())
    if b.tokens >= 1 {
        b.tokens -= 1
        l.mu.Unlock()
        return true
    }
    l.mu.Unlock()
    return false
}

// Acquire consumes one token for key, blocking until one is available.
// When the bucket is empty the caller waits (1-tokens)/rate and the bucket
// is left drained. Callers must Acquire before every upstream call.
func (l *Limiter) Acquire(ctx context.Context, key string, capacity, refillPerSec float64) error {
    now := time.Now()
    l.mu.Lock()
    b := l.refill(key, capacity, refillPerSec, now)
    if b.tokens >= 1 {
        b.tokens -= 1
        l.mu.Unlock()
        return nil
    }
    wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
    b.tokens = 0
    b.last = now.Add(wait)
    l.mu.Unlock()

    t := time.NewTimer(wait)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}
