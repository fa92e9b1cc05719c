package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// ════════════════════════════════════════════════════════════════════
// cache.go
// ════════════════════════════════════════════════════════════════════

func TestCacheSetGet(t *testing.T) {
	c := NewCache[int](time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set("a", 42)
	v, ok := c.Get("a")
	if !ok || v != 42 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	if c.TTL() != time.Minute {
		t.Fatalf("TTL() = %v", c.TTL())
	}
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	c := NewCache[string](6 * time.Hour)
	c.SetClock(func() time.Time { return now })

	c.Set("k", "v")
	entry, ok := c.Entry("k")
	if !ok || !entry.StoredAt.Equal(now) {
		t.Fatalf("Entry = %+v, %v", entry, ok)
	}

	now = now.Add(6 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be valid exactly at TTL")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry older than TTL should be expired")
	}
	if removed := c.Cleanup(); removed != 1 {
		t.Fatalf("Cleanup removed %d, want 1", removed)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after cleanup", c.Len())
	}
}

func TestCacheSetWithTTLInvalidateFlush(t *testing.T) {
	c := NewCache[int](time.Hour)
	c.SetWithTTL("short", 1, -time.Second)
	if _, ok := c.Get("short"); ok {
		t.Fatal("negative TTL entry should be expired")
	}
	c.Set("x", 1)
	c.Set("y", 2)
	c.Invalidate("x")
	if _, ok := c.Get("x"); ok {
		t.Fatal("invalidated key should miss")
	}
	c.Flush()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after flush", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Set("k", n)
			c.Get("k")
			c.Cleanup()
		}(i)
	}
	wg.Wait()
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected key after concurrent writes")
	}
}

// ════════════════════════════════════════════════════════════════════
// ratelimit.go
// ════════════════════════════════════════════════════════════════════

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d: %v", i, err)
		}
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestRateLimiterRefillsPerInterval(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.last = now

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if rl.Allow() {
		t.Fatal("empty bucket should refuse")
	}
	if ok, wait := rl.take(); ok || wait != time.Second {
		t.Fatalf("take = %v, %v; want false, 1s", ok, wait)
	}

	now = now.Add(1500 * time.Millisecond)
	if !rl.Allow() {
		t.Fatal("one token should be restored after an interval")
	}
	if ok, wait := rl.take(); ok || wait != 500*time.Millisecond {
		t.Fatalf("take = %v, %v; want false, 500ms", ok, wait)
	}

	now = now.Add(10 * time.Second)
	for i := range 2 {
		if !rl.Allow() {
			t.Fatalf("Allow #%d after a long idle", i)
		}
	}
	if rl.Allow() {
		t.Fatal("refill must not exceed the burst")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(1, 0)
	for range 5 {
		if !rl.Allow() {
			t.Fatal("zero interval should never limit")
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// logger.go
// ════════════════════════════════════════════════════════════════════

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("info", "json", &buf)
	log.Debug("hidden")
	log.Info("estimate", "product", "cement", "source", "AI")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "estimate" || rec["product"] != "cement" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", "text", &buf)
	log.Debug("provider failed", "provider", "gemini")
	if !strings.Contains(buf.String(), "provider=gemini") {
		t.Fatalf("unexpected text output: %q", buf.String())
	}
}
