package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func reportFor(name string) *domain.Report {
	return &domain.Report{ContractName: name, OverallScore: 80, RiskLevel: domain.RiskLow}
}

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(time.Hour, 0, newFakeClock())

	if r, h := c.Get("fp1"); r != nil || h != nil {
		t.Fatalf("empty cache should miss")
	}

	if _, claimed := c.Register("fp1"); !claimed {
		t.Fatalf("first register should claim")
	}
	c.Complete("fp1", reportFor("Vault"), true)

	r, h := c.Get("fp1")
	if r == nil || h != nil {
		t.Fatalf("expected a cache hit")
	}
	if r.ContractName != "Vault" {
		t.Fatalf("wrong report: %+v", r)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(time.Hour, 0, clock)

	c.Register("fp1")
	c.Complete("fp1", reportFor("Vault"), true)

	clock.Advance(59 * time.Minute)
	if r, _ := c.Get("fp1"); r == nil {
		t.Fatalf("entry expired before its TTL")
	}

	clock.Advance(2 * time.Minute)
	if r, _ := c.Get("fp1"); r != nil {
		t.Fatalf("entry should have expired")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped on read, len = %d", c.Len())
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(time.Hour, 2, newFakeClock())

	for _, fp := range []string{"a", "b"} {
		c.Register(fp)
		c.Complete(fp, reportFor(fp), true)
	}
	// Touch "a" so "b" is the eviction candidate.
	if r, _ := c.Get("a"); r == nil {
		t.Fatalf("warmup miss")
	}

	c.Register("c")
	c.Complete("c", reportFor("c"), true)

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if r, _ := c.Get("b"); r != nil {
		t.Fatalf("least recently used entry should have been evicted")
	}
	for _, fp := range []string{"a", "c"} {
		if r, _ := c.Get(fp); r == nil {
			t.Fatalf("%q should have survived eviction", fp)
		}
	}
}

func TestCacheInflightJoin(t *testing.T) {
	c := NewCache(time.Hour, 0, newFakeClock())

	h1, claimed := c.Register("fp1")
	if !claimed {
		t.Fatalf("first register should claim")
	}
	h2, claimed := c.Register("fp1")
	if claimed {
		t.Fatalf("second register must join, not claim")
	}
	if h1 != h2 {
		t.Fatalf("joiners must share the claimant's handle")
	}
	if _, h := c.Get("fp1"); h != h1 {
		t.Fatalf("Get during computation should return the in-flight handle")
	}

	want := reportFor("Vault")
	done := make(chan *domain.Report, 1)
	go func() {
		r, err := h2.Wait(context.Background())
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
		done <- r
	}()

	c.Complete("fp1", want, true)
	if got := <-done; got != want {
		t.Fatalf("joiner must receive the producer's report instance")
	}
}

func TestCacheCompleteWithoutStore(t *testing.T) {
	c := NewCache(time.Hour, 0, newFakeClock())

	h, _ := c.Register("fp1")
	c.Complete("fp1", reportFor("Vault"), false)

	if r, err := h.Wait(context.Background()); err != nil || r == nil {
		t.Fatalf("waiters must still be released: %v", err)
	}
	if r, _ := c.Get("fp1"); r != nil {
		t.Fatalf("store=false must not cache the report")
	}
}

func TestCacheFailReleasesWaiters(t *testing.T) {
	c := NewCache(time.Hour, 0, newFakeClock())

	h, _ := c.Register("fp1")
	boom := errors.New("preprocess failed")
	c.Fail("fp1", boom)

	if _, err := h.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("waiters should observe the failure, got %v", err)
	}
	if r, h := c.Get("fp1"); r != nil || h != nil {
		t.Fatalf("failed computation must leave no trace")
	}
	// The fingerprint is claimable again.
	if _, claimed := c.Register("fp1"); !claimed {
		t.Fatalf("fingerprint should be free after a failure")
	}
}

func TestInflightWaitHonorsContext(t *testing.T) {
	c := NewCache(time.Hour, 0, newFakeClock())
	h, _ := c.Register("fp1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait should give up with the context, got %v", err)
	}
}
