package analysis

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/euii-ii/NovaGuard-sub005/internal/application"
	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// Inflight is a joinable handle to a running computation. All joiners are
// released with the same report instance the producer completed with, so
// they observe identical analysisId and timing metadata. Intentional: a
// join is "this is your result too", not a re-run.
type Inflight struct {
	done   chan struct{}
	report *domain.Report
	err    error
}

// Wait blocks until the producer completes or ctx is done.
func (h *Inflight) Wait(ctx context.Context) (*domain.Report, error) {
	select {
	case <-h.done:
		return h.report, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type cacheEntry struct {
	fingerprint string
	report      *domain.Report
	expiresAt   time.Time
}

// Cache is the fingerprint → report cache plus the in-flight registry.
// Reads and claims for a given fingerprint are linearized under one lock,
// which is what guarantees at-most-one concurrent computation per
// fingerprint.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxSize  int // 0 = unbounded
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	inflight map[string]*Inflight
	clock    application.Clock
}

func NewCache(ttl time.Duration, maxSize int, clock application.Clock) *Cache {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Cache{
		ttl:      ttl,
		maxSize:  maxSize,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		inflight: make(map[string]*Inflight),
		clock:    clock,
	}
}

// Get returns a completed report, or a handle to join an in-flight
// computation, or (nil, nil) on a miss. Expired entries are dropped on read.
func (c *Cache) Get(fingerprint string) (*domain.Report, *Inflight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[fingerprint]; ok {
		e := el.Value.(*cacheEntry)
		if c.clock.Now().Before(e.expiresAt) {
			c.order.MoveToFront(el)
			return e.report, nil
		}
		c.order.Remove(el)
		delete(c.entries, fingerprint)
	}
	if h, ok := c.inflight[fingerprint]; ok {
		return nil, h
	}
	return nil, nil
}

// Register atomically claims the fingerprint for a new computation.
// claimed=true means the caller owns the computation and must call
// Complete or Fail; claimed=false means another caller got there first and
// the returned handle joins that claim.
func (c *Cache) Register(fingerprint string) (*Inflight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.inflight[fingerprint]; ok {
		return h, false
	}
	h := &Inflight{done: make(chan struct{})}
	c.inflight[fingerprint] = h
	return h, true
}

// Complete stores the result with the configured TTL and releases all
// joined waiters with the same report instance. store=false releases
// waiters without caching (total failures are not worth a TTL).
func (c *Cache) Complete(fingerprint string, report *domain.Report, store bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if store {
		el := c.order.PushFront(&cacheEntry{
			fingerprint: fingerprint,
			report:      report,
			expiresAt:   c.clock.Now().Add(c.ttl),
		})
		c.entries[fingerprint] = el
		c.evictLocked()
	}
	if h, ok := c.inflight[fingerprint]; ok {
		h.report = report
		close(h.done)
		delete(c.inflight, fingerprint)
	}
}

// Fail releases waiters with an error and caches nothing.
func (c *Cache) Fail(fingerprint string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.inflight[fingerprint]; ok {
		h.err = err
		close(h.done)
		delete(c.inflight, fingerprint)
	}
}

// Len reports the number of cached (not in-flight) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops least-recently-used entries beyond the capacity limit.
func (c *Cache) evictLocked() {
	if c.maxSize <= 0 {
		return
	}
	for len(c.entries) > c.maxSize {
		el := c.order.Back()
		if el == nil {
			return
		}
		e := el.Value.(*cacheEntry)
		c.order.Remove(el)
		delete(c.entries, e.fingerprint)
	}
}
