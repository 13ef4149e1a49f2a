package advisor

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	"github.com/NERVsystems/dxfcropmcp/pkg/tracing"
)

const (
	// DefaultCacheSize is the number of verdicts kept by NewCached.
	DefaultCacheSize = 256
	// DefaultCacheTTL is how long a verdict is reused.
	DefaultCacheTTL = time.Hour

	cacheType = "advisor"
)

// Cached remembers verdicts of another Validator and collapses concurrent
// requests for the same text into one. Fallback verdicts are not cached.
type Cached struct {
	next  Validator
	cache *expirable.LRU[string, Verdict]
	group singleflight.Group
}

// NewCached wraps next. Non-positive size or ttl select the defaults.
func NewCached(next Validator, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, Verdict](size, nil, ttl),
	}
}

// Name implements Validator.
func (c *Cached) Name() string { return c.next.Name() }

// Len returns the number of cached verdicts.
func (c *Cached) Len() int { return c.cache.Len() }

// isFallback reports whether v stands in for a verdict that could not be
// obtained. Such verdicts are retried on the next call.
func isFallback(v Verdict) bool {
	return v == missingKey() || v == unverified()
}

// Validate implements Validator.
func (c *Cached) Validate(ctx context.Context, text string) (Verdict, error) {
	key, err := checkLength(text)
	if err != nil {
		return Verdict{}, err
	}
	key = strings.Join(strings.Fields(key), " ")

	if v, ok := c.cache.Get(key); ok {
		monitoring.RecordCacheHit(cacheType)
		tracing.SetAttributes(ctx, tracing.AdvisorAttributes(c.Name(), v.GeometryType, true)...)
		return v, nil
	}
	monitoring.RecordCacheMiss(cacheType)

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := c.next.Validate(ctx, text)
		if err != nil {
			return Verdict{}, err
		}
		if !isFallback(v) {
			c.cache.Add(key, v)
			monitoring.UpdateCacheSize(cacheType, c.cache.Len())
		}
		return v, nil
	})
	if err != nil {
		return Verdict{}, err
	}
	return res.(Verdict), nil
}
