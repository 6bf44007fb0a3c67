package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different host should also work
	if err := limiter.Wait(ctx, "http://google.com"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_FileURIsNotLimited(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "file:///tmp/source.html"); err != nil {
			t.Fatalf("file uri was limited: %v", err)
		}
	}
	if len(limiter.limiters) != 0 {
		t.Errorf("expected no host limiters, got %d", len(limiter.limiters))
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// token consumed: a second wait cannot finish inside the deadline
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(short, "http://EXAMPLE.com/other"); err == nil {
		t.Errorf("expected second wait on the same host to be throttled")
	}

	if err := limiter.Wait(short, "http://other.com"); err != nil {
		t.Errorf("expected other host to pass: %v", err)
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10) // fast default
	limiter.SetHostRate("Slow.com", 0.1, 1)

	if got := limiter.getLimiter("slow.com").Limit(); got != 0.1 {
		t.Errorf("expected limit 0.1, got %v", got)
	}
	if got := limiter.getLimiter("fast.com").Limit(); got != 10 {
		t.Errorf("expected default limit 10, got %v", got)
	}
}

func TestLimiter_SetCrawlDelay(t *testing.T) {
	limiter := NewLimiter(10, 10)

	limiter.SetCrawlDelay("polite.org", 2*time.Second)
	if got := limiter.getLimiter("polite.org").Limit(); got != 0.5 {
		t.Errorf("expected limit 0.5 for a 2s crawl delay, got %v", got)
	}

	// a faster crawl delay never relaxes the configured rate
	limiter.SetCrawlDelay("fast.org", time.Millisecond)
	if got := limiter.getLimiter("fast.org").Limit(); got != 10 {
		t.Errorf("expected default limit kept, got %v", got)
	}

	limiter.SetCrawlDelay("zero.org", 0)
	if got := limiter.getLimiter("zero.org").Limit(); got != 10 {
		t.Errorf("expected default limit for zero delay, got %v", got)
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("http://Example.com:8080/foo")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "example.com:8080" {
		t.Errorf("expected example.com:8080, got %s", host)
	}

	_, err = hostOf("::invalid")
	if err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
