package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Base:       1 * time.Millisecond,
		Max:        4 * time.Millisecond,
		Factor:     2.0,
		Timeout:    1 * time.Second,
	}
}

func testLedger() *RequestLedger {
	return NewRequestLedger(1*time.Minute, 1000, 1000)
}

func countingFetcher(payload string, calls *int32) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(calls, 1)
		return []byte(payload), nil
	}
}

func TestFetchCache_FreshHitDoesNotInvokeFetcher(t *testing.T) {
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	var calls int32
	fn := countingFetcher(`{"ok":true}`, &calls)

	first := fc.Fetch(context.Background(), "key", fn)
	if first.Source != SourceFresh {
		t.Fatalf("Expected fresh source, got %s (err: %v)", first.Source, first.Err)
	}

	second := fc.Fetch(context.Background(), "key", fn)
	if second.Source != SourceCached {
		t.Errorf("Expected cached source, got %s", second.Source)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Fetcher must not run on a fresh hit, got %d calls", got)
	}
}

func TestFetchCache_ElapsedWindowTriggersOneFetch(t *testing.T) {
	fc := NewFetchCache(20*time.Millisecond, testRetryConfig(), testLedger(), nil)
	var calls int32
	fn := countingFetcher(`{"ok":true}`, &calls)

	fc.Fetch(context.Background(), "key", fn)
	time.Sleep(30 * time.Millisecond)

	res := fc.Fetch(context.Background(), "key", fn)
	if res.Source != SourceFresh {
		t.Errorf("Expected fresh source after window elapsed, got %s", res.Source)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected exactly 2 fetches, got %d", got)
	}
}

func TestFetchCache_RetryBound(t *testing.T) {
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	var calls int32
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, fmt.Errorf("persistent failure")
	}

	res := fc.Fetch(context.Background(), "key", fn)
	if res.Source != SourceFallback {
		t.Errorf("Expected fallback source, got %s", res.Source)
	}
	if !errors.Is(res.Err, ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got %v", res.Err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Persistently failing fetcher must run at most retries times, got %d", got)
	}
}

func TestFetchCache_FailTwiceThenSucceed(t *testing.T) {
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	var calls int32
	fn := func(ctx context.Context) ([]byte, error) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			return nil, fmt.Errorf("transient failure %d", n)
		}
		return []byte(`{"value":42}`), nil
	}

	res := fc.Fetch(context.Background(), "key", fn)
	if res.Source != SourceFresh {
		t.Fatalf("Expected success after retries, got %s (err: %v)", res.Source, res.Err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 2 failed attempts before success, got %d total calls", got)
	}

	var decoded map[string]int
	if err := json.Unmarshal(res.Data, &decoded); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if decoded["value"] != 42 {
		t.Errorf("Unexpected payload: %v", decoded)
	}
}

func TestFetchCache_StaleFallbackOnFailure(t *testing.T) {
	fc := NewFetchCache(20*time.Millisecond, testRetryConfig(), testLedger(), nil)
	var calls int32

	fc.Fetch(context.Background(), "key", countingFetcher(`{"ok":true}`, &calls))
	time.Sleep(30 * time.Millisecond)

	res := fc.Fetch(context.Background(), "key", func(ctx context.Context) ([]byte, error) {
		return nil, fmt.Errorf("upstream down")
	})
	if res.Source != SourceStale {
		t.Fatalf("Expected stale source, got %s", res.Source)
	}
	if res.Err == nil {
		t.Error("Stale result must carry the fetch error")
	}
	if string(res.Data) != `{"ok":true}` {
		t.Errorf("Stale result must carry the old payload, got %s", res.Data)
	}
}

func TestFetchCache_SanitizesStringLeaves(t *testing.T) {
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	fn := func(ctx context.Context) ([]byte, error) {
		return []byte(`{"name":"<script>alert(1)</script>","nested":{"items":["<b>x</b>"]}}`), nil
	}

	res := fc.Fetch(context.Background(), "key", fn)
	if res.Err != nil {
		t.Fatalf("Fetch failed: %v", res.Err)
	}

	var decoded struct {
		Name   string `json:"name"`
		Nested struct {
			Items []string `json:"items"`
		} `json:"nested"`
	}
	if err := json.Unmarshal(res.Data, &decoded); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if decoded.Name != "&lt;script&gt;alert(1)&lt;/script&gt;" {
		t.Errorf("String leaf not escaped: %q", decoded.Name)
	}
	if decoded.Nested.Items[0] != "&lt;b&gt;x&lt;/b&gt;" {
		t.Errorf("Nested string leaf not escaped: %q", decoded.Nested.Items[0])
	}
}

func TestFetchCache_NonJSONPayloadIsHardError(t *testing.T) {
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	var calls int32
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("<html>not json</html>"), nil
	}

	res := fc.Fetch(context.Background(), "key", fn)
	if !errors.Is(res.Err, ErrContentType) {
		t.Errorf("Expected ErrContentType, got %v", res.Err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Content-type mismatch must not be retried, got %d calls", got)
	}
}

func TestFetchCache_TimeoutSurfacesDistinctError(t *testing.T) {
	retry := testRetryConfig()
	retry.Timeout = 20 * time.Millisecond
	fc := NewFetchCache(1*time.Minute, retry, testLedger(), nil)

	res := fc.Fetch(context.Background(), "key", func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(res.Err, ErrRequestTimeout) {
		t.Errorf("Expected ErrRequestTimeout, got %v", res.Err)
	}
}

func TestFetchCache_CoalescesConcurrentCallers(t *testing.T) {
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	var calls int32
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return []byte(`{"ok":true}`), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := fc.Fetch(context.Background(), "key", fn)
			if res.Err != nil {
				t.Errorf("Fetch failed: %v", res.Err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Concurrent callers must share one in-flight request, got %d", got)
	}
}

func TestFetchCache_LedgerPrefersStale(t *testing.T) {
	ledger := NewRequestLedger(1*time.Minute, 1, 1000)
	fc := NewFetchCache(10*time.Millisecond, testRetryConfig(), ledger, nil)
	var calls int32

	fc.Fetch(context.Background(), "key", countingFetcher(`{"ok":true}`, &calls))
	time.Sleep(20 * time.Millisecond)

	// The single recorded call already puts the ledger at its threshold, so
	// the now-expired entry must be served stale instead of refetched.
	res := fc.Fetch(context.Background(), "key", countingFetcher(`{"ok":false}`, &calls))
	if res.Source != SourceStale {
		t.Fatalf("Expected stale source while rate limited, got %s", res.Source)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("No new request may be issued while rate limited, got %d calls", got)
	}
}

func TestFetchCache_Reset(t *testing.T) {
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	var calls int32
	fn := countingFetcher(`{"ok":true}`, &calls)

	fc.Fetch(context.Background(), "key", fn)
	if stats := fc.Stats(); stats.Entries != 1 {
		t.Fatalf("Expected 1 cached entry, got %d", stats.Entries)
	}

	fc.Reset()
	if stats := fc.Stats(); stats.Entries != 0 {
		t.Errorf("Expected empty cache after reset, got %d entries", stats.Entries)
	}

	fc.Fetch(context.Background(), "key", fn)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Reset must force a refetch, got %d calls", got)
	}
}
