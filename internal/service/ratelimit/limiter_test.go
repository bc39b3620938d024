package ratelimit

import (
    "context"
    "testing"
    "time"
)

func TestAllowBurstThenDeny(t *testing.T) {
    l := New()
    for i := 0; i < 5; i++ {
        if !l.Allow("k", 5, 5) {
            t.Fatalf("call %d should be allowed", i)
        }
    }
    if l.Allow("k", 5, 5) {
        t.Fatalf("sixth call should be denied")
    }
}

func TestAcquireBlocksWhenDrained(t *testing.T) {
    l := New()
    ctx := context.Background()

    start := time.Now()
    for i := 0; i < 5; i++ {
        if err := l.Acquire(ctx, "k", 5, 5); err != nil {
            t.Fatalf("acquire %d: %v", i, err)
        }
    }
    if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
        t.Fatalf("burst should not block, took %v", elapsed)
    }

    start = time.Now()
    if err := l.Acquire(ctx, "k", 5, 5); err != nil {
        t.Fatalf("acquire: %v", err)
    }
    if elapsed := time.Since(start); elapsed < 190*time.Millisecond {
        t.Fatalf("drained bucket should wait ~200ms, waited %v", elapsed)
    }
}

func TestAcquireCancel(t *testing.T) {
    l := New()
    ctx := context.Background()
    if err := l.Acquire(ctx, "k", 1, 0.1); err != nil {
        t.Fatalf("acquire: %v", err)
    }

    cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
    defer cancel()
    if err := l.Acquire(cctx, "k", 1, 0.1); err == nil {
        t.Fatalf("expected context error")
    }
}

func TestKeysIndependent(t *testing.T) {
    l := New()
    if !l.Allow("a", 1, 1) {
        t.Fatalf("a should be allowed")
    }
    if l.Allow("a", 1, 1) {
        t.Fatalf("a should now be empty")
    }
    if !l.Allow("b", 1, 1) {
        t.Fatalf("b has its own bucket")
    }
}
