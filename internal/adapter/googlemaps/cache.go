package googlemaps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
	"github.com/couchcryptid/responder-dispatch-service/internal/observability"
)

// Cache stores travel estimates by key with a time-to-live.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.TravelEstimate, bool, error)
	Set(ctx context.Context, key string, estimates []domain.TravelEstimate, ttl time.Duration) error
}

// CachedProvider wraps a TravelTimeProvider with a TTL cache keyed by the
// rounded origin and the exact station set.
type CachedProvider struct {
	inner   domain.TravelTimeProvider
	cache   Cache
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner domain.TravelTimeProvider, cache Cache, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedProvider) Name() string { return c.inner.Name() }

func (c *CachedProvider) Estimate(ctx context.Context, origin domain.Coordinate, stations []domain.Station) ([]domain.TravelEstimate, error) {
	key := cacheKey(c.inner.Name(), origin, stations)

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to direct provider calls.
		c.logger.Warn("estimate cache read failed", "error", err)
	}
	if ok {
		c.metrics.EstimateCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	c.metrics.EstimateCache.WithLabelValues("miss").Inc()

	estimates, err := c.inner.Estimate(ctx, origin, stations)
	if err != nil {
		return nil, err
	}
	// Only cache complete results so unroutable stations are retried.
	if complete(estimates) {
		if err := c.cache.Set(ctx, key, estimates, c.ttl); err != nil {
			c.logger.Warn("estimate cache write failed", "error", err)
		}
	}
	return estimates, nil
}

func complete(estimates []domain.TravelEstimate) bool {
	if len(estimates) == 0 {
		return false
	}
	for _, e := range estimates {
		if _, ok := domain.ParseMinutes(e.DurationText); !ok {
			return false
		}
	}
	return true
}

// cacheKey identifies a request by provider, origin rounded to roughly 11m,
// and a digest of the ordered station set.
func cacheKey(provider string, origin domain.Coordinate, stations []domain.Station) string {
	h := sha256.New()
	for _, s := range stations {
		h.Write([]byte(s.Name))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(s.Location.Lat, 'f', -1, 64)))
		h.Write([]byte{','})
		h.Write([]byte(strconv.FormatFloat(s.Location.Lng, 'f', -1, 64)))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("estimates:%s:%.4f,%.4f:%s",
		provider, origin.Lat, origin.Lng, hex.EncodeToString(h.Sum(nil)[:12]))
}

// MemoryCache is a thread-safe LRU cache whose entries also expire after
// their TTL.
type MemoryCache struct {
	maxEntries int
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     []domain.TravelEstimate
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// defaultMaxEntries applies when NewMemoryCache is given a non-positive size.
const defaultMaxEntries = 1000

// NewMemoryCache creates an LRU cache holding at most maxEntries results.
// A non-positive maxEntries falls back to defaultMaxEntries.
func NewMemoryCache(maxEntries int, clock clockwork.Clock) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.TravelEstimate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.remove(e)
		delete(c.entries, key)
		return nil, false, nil
	}
	c.moveToFront(e)
	return cloneEstimates(e.value), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, estimates []domain.TravelEstimate, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(ttl)
	if e, ok := c.entries[key]; ok {
		e.value = cloneEstimates(estimates)
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return nil
	}

	e := &entry{key: key, value: cloneEstimates(estimates), expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return nil
}

// Len reports the number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *MemoryCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *MemoryCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *MemoryCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

func cloneEstimates(in []domain.TravelEstimate) []domain.TravelEstimate {
	out := make([]domain.TravelEstimate, len(in))
	copy(out, in)
	return out
}
