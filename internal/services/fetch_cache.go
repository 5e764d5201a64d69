package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Error kinds surfaced by the fetch layer, distinct so call sites can map
// them to different user-facing behavior.
var (
	ErrRequestTimeout     = errors.New("request timeout")
	ErrUpstreamRateLimit  = errors.New("upstream rate limit exceeded")
	ErrGatewayTimeout     = errors.New("upstream gateway timeout")
	ErrContentType        = errors.New("unexpected content type")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// FetchSource says where a FetchResult's data came from.
type FetchSource string

const (
	SourceFresh    FetchSource = "fresh"    // fetched from upstream on this call
	SourceCached   FetchSource = "cached"   // served inside the freshness window
	SourceStale    FetchSource = "stale"    // expired entry served as degraded fallback
	SourceFallback FetchSource = "fallback" // nothing cached; caller substitutes its typed default
)

// FetchResult is the uniform envelope returned by the fetch layer. Err is set
// alongside stale and fallback data so each call site decides what to surface.
type FetchResult struct {
	Data      json.RawMessage
	Source    FetchSource
	FetchedAt time.Time
	Err       error
}

// RetryConfig configures retry behavior for one logical fetch.
type RetryConfig struct {
	MaxRetries int           // Total attempts for a persistently failing fetcher
	Base       time.Duration // First backoff delay
	Max        time.Duration // Backoff cap
	Factor     float64       // Backoff multiplier per attempt
	Timeout    time.Duration // Overall budget; firing surfaces as ErrRequestTimeout
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Base:       1 * time.Second,
		Max:        8 * time.Second,
		Factor:     2.0,
		Timeout:    30 * time.Second,
	}
}

// FetchFunc performs one upstream attempt and returns the raw JSON payload.
type FetchFunc func(ctx context.Context) ([]byte, error)

type cacheEntry struct {
	data      json.RawMessage
	timestamp time.Time
}

// CacheStats is a snapshot of fetch-layer counters.
type CacheStats struct {
	Entries     int   `json:"entries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	StaleServes int64 `json:"staleServes"`
	Fallbacks   int64 `json:"fallbacks"`
}

// FetchCache is the time-windowed cache plus retry wrapper around upstream
// fetches. Entries never expire out of the store; freshness is checked against
// the window on lookup so expired data stays available as a stale fallback.
// Concurrent callers for the same key share one in-flight request.
//
// Construct per process (or per test) with NewFetchCache; there is no
// package-level instance.
type FetchCache struct {
	store   *cache.Cache
	window  time.Duration
	retry   RetryConfig
	ledger  *RequestLedger
	metrics *Metrics
	group   singleflight.Group

	mu    sync.Mutex
	stats CacheStats
}

// NewFetchCache creates a fetch cache with the given freshness window, retry
// policy and request ledger. metrics may be nil.
func NewFetchCache(window time.Duration, retry RetryConfig, ledger *RequestLedger, metrics *Metrics) *FetchCache {
	return &FetchCache{
		store:   cache.New(cache.NoExpiration, 0),
		window:  window,
		retry:   retry,
		ledger:  ledger,
		metrics: metrics,
	}
}

// Fetch returns cached data for key if still fresh, otherwise runs fn with
// retries, sanitizes and caches the payload, and returns it. On exhausted
// retries it degrades to stale data when any exists, else to a fallback
// result whose Data is nil.
//
// windowOverride, when given, replaces the configured freshness window for
// this call only.
func (f *FetchCache) Fetch(ctx context.Context, key string, fn FetchFunc, windowOverride ...time.Duration) FetchResult {
	window := f.window
	if len(windowOverride) > 0 {
		window = windowOverride[0]
	}

	if entry, ok := f.lookup(key); ok {
		age := time.Since(entry.timestamp)
		if age < window {
			f.count(func(s *CacheStats) { s.Hits++ })
			if f.metrics != nil {
				f.metrics.RecordCacheHit()
			}
			return FetchResult{Data: entry.data, Source: SourceCached, FetchedAt: entry.timestamp}
		}

		// Expired entry: when the ledger says we are hammering the upstream,
		// serve it stale instead of issuing yet another request.
		if f.ledger != nil && f.ledger.Limited() {
			f.count(func(s *CacheStats) { s.StaleServes++ })
			if f.metrics != nil {
				f.metrics.RecordStaleServe()
			}
			return FetchResult{Data: entry.data, Source: SourceStale, FetchedAt: entry.timestamp}
		}
	}

	f.count(func(s *CacheStats) { s.Misses++ })
	if f.metrics != nil {
		f.metrics.RecordCacheMiss()
	}

	data, err, _ := f.group.Do(key, func() (interface{}, error) {
		return f.fetchWithRetry(ctx, key, fn)
	})
	if err == nil {
		payload := data.(json.RawMessage)
		now := time.Now()
		f.store.Set(key, cacheEntry{data: payload, timestamp: now}, cache.NoExpiration)
		return FetchResult{Data: payload, Source: SourceFresh, FetchedAt: now}
	}

	if entry, ok := f.lookup(key); ok {
		log.Printf("⚠️  [FETCH] %s failed, serving stale data from %v: %v", key, entry.timestamp.Format(time.RFC3339), err)
		f.count(func(s *CacheStats) { s.StaleServes++ })
		if f.metrics != nil {
			f.metrics.RecordStaleServe()
		}
		return FetchResult{Data: entry.data, Source: SourceStale, FetchedAt: entry.timestamp, Err: err}
	}

	log.Printf("❌ [FETCH] %s failed with nothing cached: %v", key, err)
	f.count(func(s *CacheStats) { s.Fallbacks++ })
	if f.metrics != nil {
		f.metrics.RecordFallback()
	}
	return FetchResult{Source: SourceFallback, Err: err}
}

// fetchWithRetry runs fn up to MaxRetries times with exponential backoff and
// jitter under one overall deadline. Successful payloads are sanitized before
// they reach the cache.
func (f *FetchCache) fetchWithRetry(ctx context.Context, key string, fn FetchFunc) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, f.retry.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < f.retry.MaxRetries; attempt++ {
		if f.ledger != nil {
			if err := f.ledger.Wait(ctx); err != nil {
				return nil, f.classify(err)
			}
			f.ledger.Record()
		}
		if f.metrics != nil {
			f.metrics.RecordFetchAttempt()
		}

		data, err := fn(ctx)
		if err == nil {
			sanitized, serr := SanitizeJSON(data)
			if serr != nil {
				// Not JSON at all; do not retry, do not cache.
				return nil, fmt.Errorf("%w: %v", ErrContentType, serr)
			}
			if attempt > 0 {
				log.Printf("✅ [FETCH] %s succeeded on attempt %d", key, attempt+1)
			}
			return json.RawMessage(sanitized), nil
		}

		lastErr = err
		if cerr := f.classify(err); errors.Is(cerr, ErrRequestTimeout) {
			if f.metrics != nil {
				f.metrics.RecordFetchTimeout()
			}
			return nil, cerr
		}
		if errors.Is(err, ErrContentType) {
			// A wrong content type will not fix itself on retry.
			return nil, err
		}
		if f.metrics != nil {
			f.metrics.RecordFetchRetry()
		}

		if attempt < f.retry.MaxRetries-1 {
			delay := f.backoff(attempt)
			log.Printf("🔁 [FETCH] %s attempt %d/%d failed (%v), retrying in %v", key, attempt+1, f.retry.MaxRetries, err, delay)
			select {
			case <-ctx.Done():
				return nil, f.classify(ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("%w for %s: %w", ErrMaxRetriesExceeded, key, lastErr)
}

// classify maps context deadline errors onto the distinct timeout kind.
func (f *FetchCache) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRequestTimeout, err)
	}
	return err
}

// backoff computes base * factor^attempt capped at max, plus up to 25% jitter.
func (f *FetchCache) backoff(attempt int) time.Duration {
	d := float64(f.retry.Base) * math.Pow(f.retry.Factor, float64(attempt))
	if d > float64(f.retry.Max) {
		d = float64(f.retry.Max)
	}
	jitter := rand.Float64() * 0.25 * d
	return time.Duration(d + jitter)
}

func (f *FetchCache) lookup(key string) (cacheEntry, bool) {
	value, found := f.store.Get(key)
	if !found {
		return cacheEntry{}, false
	}
	entry, ok := value.(cacheEntry)
	return entry, ok
}

func (f *FetchCache) count(update func(*CacheStats)) {
	f.mu.Lock()
	update(&f.stats)
	f.mu.Unlock()
}

// Stats returns a snapshot of the cache counters.
func (f *FetchCache) Stats() CacheStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.stats
	stats.Entries = f.store.ItemCount()
	return stats
}

// Reset clears all cached entries, the counters and the request ledger.
func (f *FetchCache) Reset() {
	f.store.Flush()
	f.mu.Lock()
	f.stats = CacheStats{}
	f.mu.Unlock()
	if f.ledger != nil {
		f.ledger.Reset()
	}
	log.Printf("🧹 [FETCH] Cache reset")
}
