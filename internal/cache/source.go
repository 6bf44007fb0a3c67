package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
)

// Fetcher is the fetch capability: raw content for a canonical URI.
// Retry policy belongs to the implementation.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, uri string) ([]byte, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// Resolver maps a hash prefix to exactly one declared source
type Resolver interface {
	Resolve(prefix string) (*model.SourceEntry, error)
}

// FetchError is a memoised fetch failure for one source
type FetchError struct {
	Hash string
	URI  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Stats reports Source Cache activity within a run
type Stats struct {
	Fetches   int64 // fetch capability invocations
	Hits      int64 // resolutions that did not invoke the fetch capability
	Failures  int64 // fetches that failed
	StoreHits int64 // subset of Hits served from the persistent store
}

type outcome struct {
	data      []byte
	err       error
	cancelled bool // the run was cancelled mid-fetch; not memoised
}

// SourceCache resolves source content by hash. Within a run it invokes the
// fetch capability at most once per full hash: concurrent resolutions share
// one fetch and its outcome, and failures stay failures until the run ends.
type SourceCache struct {
	resolver Resolver
	fetcher  Fetcher
	store    Store
	storeTTL time.Duration
	logger   *zap.Logger

	flight singleflight.Group

	mu      sync.RWMutex
	results map[string]outcome

	resolutions int64
	fetches     int64
	failures    int64
	storeHits   int64
}

// Option configures a SourceCache
type Option func(*SourceCache)

// WithStore puts a persistent content store behind the run memo
func WithStore(store Store, ttl time.Duration) Option {
	return func(c *SourceCache) {
		c.store = store
		c.storeTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *SourceCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewSourceCache creates a run-scoped Source Cache
func NewSourceCache(resolver Resolver, fetcher Fetcher, opts ...Option) *SourceCache {
	c := &SourceCache{
		resolver: resolver,
		fetcher:  fetcher,
		logger:   zap.NewNop(),
		results:  make(map[string]outcome),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the content of the source identified by hashPrefix
func (c *SourceCache) Resolve(ctx context.Context, hashPrefix string) ([]byte, error) {
	src, err := c.resolver.Resolve(hashPrefix)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, src)
}

// Get returns the content of src. Cancellation of ctx releases the caller
// immediately; the shared fetch keeps running for other waiters.
func (c *SourceCache) Get(ctx context.Context, src *model.SourceEntry) ([]byte, error) {
	atomic.AddInt64(&c.resolutions, 1)
	if out, ok := c.memo(src.Hash); ok {
		metrics.CacheHits.WithLabelValues("run").Inc()
		return out.data, out.err
	}

	ch := c.flight.DoChan(src.Hash, func() (interface{}, error) {
		// a previous flight may have finished between memo check and DoChan
		if out, ok := c.memo(src.Hash); ok {
			return out, nil
		}
		out := c.load(ctx, src)
		if !out.cancelled {
			c.mu.Lock()
			c.results[src.Hash] = out
			c.mu.Unlock()
		}
		return out, nil
	})

	select {
	case res := <-ch:
		out := res.Val.(outcome)
		return out.data, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load reads through the persistent store, then the fetch capability
func (c *SourceCache) load(ctx context.Context, src *model.SourceEntry) outcome {
	key := ContentKey(src.Hash)
	if c.store != nil {
		if data, ok := c.store.Get(key); ok {
			atomic.AddInt64(&c.storeHits, 1)
			metrics.CacheHits.WithLabelValues("store").Inc()
			c.logger.Debug("source served from store",
				zap.String("hash", src.HashPrefix),
				zap.String("uri", src.CanonicalURI))
			return outcome{data: data}
		}
	}

	atomic.AddInt64(&c.fetches, 1)
	start := time.Now()
	c.logger.Debug("fetching source",
		zap.String("hash", src.HashPrefix),
		zap.String("uri", src.CanonicalURI))

	data, err := c.fetcher.Fetch(ctx, src.CanonicalURI)
	elapsed := time.Since(start)
	metrics.SourceFetchDuration.Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return outcome{err: ctx.Err(), cancelled: true}
		}
		atomic.AddInt64(&c.failures, 1)
		metrics.SourceFetches.WithLabelValues("error").Inc()
		c.logger.Warn("source fetch failed",
			zap.String("hash", src.HashPrefix),
			zap.String("uri", src.CanonicalURI),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return outcome{err: &FetchError{Hash: src.Hash, URI: src.CanonicalURI, Err: err}}
	}

	metrics.SourceFetches.WithLabelValues("ok").Inc()
	c.logger.Debug("source fetched",
		zap.String("hash", src.HashPrefix),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", elapsed))

	if c.store != nil {
		if err := c.store.Set(key, data, c.storeTTL); err != nil {
			c.logger.Warn("failed to persist source content", zap.String("hash", src.HashPrefix), zap.Error(err))
		}
	}
	return outcome{data: data}
}

func (c *SourceCache) memo(hash string) (outcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out, ok := c.results[hash]
	return out, ok
}

// Stats returns a snapshot of the counters
func (c *SourceCache) Stats() Stats {
	fetches := atomic.LoadInt64(&c.fetches)
	return Stats{
		Fetches:   fetches,
		Hits:      atomic.LoadInt64(&c.resolutions) - fetches,
		Failures:  atomic.LoadInt64(&c.failures),
		StoreHits: atomic.LoadInt64(&c.storeHits),
	}
}
