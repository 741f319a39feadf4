package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Ramsey-B/thistle/pkg/models"
)

// Cache stores registry entries by identifier
type Cache interface {
	// Get returns the cached entry. found is false on a miss.
	Get(ctx context.Context, identifier string) (entry models.RegistryEntry, found bool, err error)
	Set(ctx context.Context, identifier string, entry models.RegistryEntry) error
}

// CachedLookup serves lookups from a cache and coalesces concurrent misses for
// the same identifier into a single upstream call. Cache failures degrade to an
// upstream call. The shared call is detached from the caller that started it and
// bounded by its own timeout; each caller still stops waiting when its own
// context ends.
type CachedLookup struct {
	log      ectologger.Logger
	upstream Lookup
	cache    Cache
	timeout  time.Duration
	group    singleflight.Group
}

// NewCachedLookup wraps upstream with a cache. timeout bounds each shared
// upstream call (default: 5s).
func NewCachedLookup(log ectologger.Logger, upstream Lookup, cache Cache, timeout time.Duration) *CachedLookup {
	if timeout <= 0 {
		timeout = DefaultConfig().LookupTimeout
	}
	return &CachedLookup{
		log:      log,
		upstream: upstream,
		cache:    cache,
		timeout:  timeout,
	}
}

func (c *CachedLookup) Lookup(ctx context.Context, identifier string) (models.RegistryEntry, error) {
	log := c.log.WithContext(ctx).WithField("identifier", identifier)

	entry, found, err := c.cache.Get(ctx, identifier)
	if err != nil {
		log.WithError(err).Warn("Failed to read registry cache")
	} else if found {
		log.Debug("Registry cache hit")
		return entry, nil
	}

	ch := c.group.DoChan(identifier, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		entry, err := c.upstream.Lookup(callCtx, identifier)
		if err != nil {
			return models.RegistryEntry{}, err
		}
		if err := c.cache.Set(callCtx, identifier, entry); err != nil {
			log.WithError(err).Warn("Failed to write registry cache")
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return models.RegistryEntry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.RegistryEntry{}, res.Err
		}
		log.WithField("shared", res.Shared).Debug("Registry cache miss")
		return res.Val.(models.RegistryEntry), nil
	}
}

// RateLimitedLookup bounds the rate of upstream registry calls. Callers wait for a
// token until their context expires.
type RateLimitedLookup struct {
	upstream Lookup
	limiter  *rate.Limiter
}

// NewRateLimitedLookup allows perSecond calls with the given burst
func NewRateLimitedLookup(upstream Lookup, perSecond float64, burst int) *RateLimitedLookup {
	return &RateLimitedLookup{
		upstream: upstream,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *RateLimitedLookup) Lookup(ctx context.Context, identifier string) (models.RegistryEntry, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return models.RegistryEntry{}, fmt.Errorf("waiting for registry rate limit: %w", err)
	}
	return r.upstream.Lookup(ctx, identifier)
}

// StaticLookup answers from a fixed set of entries. It backs local runs and tests.
type StaticLookup struct {
	mu      sync.RWMutex
	entries map[string]models.RegistryEntry
}

// NewStaticLookup creates a lookup over the given entries, keyed by identifier
func NewStaticLookup(entries ...models.RegistryEntry) *StaticLookup {
	s := &StaticLookup{entries: make(map[string]models.RegistryEntry, len(entries))}
	for _, e := range entries {
		s.entries[e.Identifier] = e
	}
	return s
}

// Put adds or replaces an entry
func (s *StaticLookup) Put(entry models.RegistryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Identifier] = entry
}

func (s *StaticLookup) Lookup(ctx context.Context, identifier string) (models.RegistryEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.RegistryEntry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[identifier]
	if !ok {
		return models.RegistryEntry{}, ErrNotRegistered
	}
	return entry, nil
}

// LoadStaticLookup reads a JSON array of registry entries
func LoadStaticLookup(path string) (*StaticLookup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry fixtures: %w", err)
	}

	var entries []models.RegistryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode registry fixtures %s: %w", path, err)
	}

	return NewStaticLookup(entries...), nil
}
