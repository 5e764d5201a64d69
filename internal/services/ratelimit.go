package services

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RequestLedger tracks upstream call timestamps inside a rolling window.
// Exceeding the threshold flips the limited flag, which callers use to prefer
// stale cached data over issuing new requests. The flag clears on its own once
// the window elapses. The ledger also paces outbound calls with a token-bucket
// limiter so bursts never hammer the upstream.
type RequestLedger struct {
	mu        sync.Mutex
	stamps    []time.Time
	window    time.Duration
	threshold int

	pacer *rate.Limiter

	// now is swappable for tests
	now func() time.Time
}

// NewRequestLedger creates a ledger with the given rolling window, call
// threshold and outbound requests-per-second pacing. A non-positive rate
// disables pacing.
func NewRequestLedger(window time.Duration, threshold int, perSecond float64) *RequestLedger {
	pacer := rate.NewLimiter(rate.Inf, 0)
	if perSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(perSecond), int(perSecond*2)+1)
	}
	return &RequestLedger{
		window:    window,
		threshold: threshold,
		pacer:     pacer,
		now:       time.Now,
	}
}

// Record notes one outbound request in the ledger.
func (l *RequestLedger) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	l.stamps = append(l.stamps, now)

	if len(l.stamps) == l.threshold {
		log.Printf("🚦 [LEDGER] Request threshold reached (%d in %v) - preferring stale data", l.threshold, l.window)
	}
}

// Limited reports whether the rolling window currently holds at least the
// threshold number of calls.
func (l *RequestLedger) Limited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return len(l.stamps) >= l.threshold
}

// Wait blocks until the outbound pacer grants a slot or the context ends.
func (l *RequestLedger) Wait(ctx context.Context) error {
	return l.pacer.Wait(ctx)
}

// Reset clears the ledger. Used by the cache reset surface and by tests.
func (l *RequestLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stamps = nil
}

// prune drops timestamps that fell out of the rolling window.
// Caller must hold the mutex.
func (l *RequestLedger) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.stamps[:0]
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.stamps = kept
}
