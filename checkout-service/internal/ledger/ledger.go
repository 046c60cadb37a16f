// Package ledger tracks the lifecycle of issued quotes so that reuse of a
// consumed or lapsed quote id can be detected before it reaches the gateway.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_checkout/checkout-service/domain"
)

const (
	// SweepInterval is how often issued quotes are checked for expiry.
	SweepInterval = 30 * time.Second

	// Retention is how long an entry is kept after it stops being ISSUED.
	Retention = time.Hour
)

var (
	ErrQuoteConsumed = errors.New("quote has already been used for an order")
	ErrQuoteExpired  = errors.New("quote has expired")
)

type Entry struct {
	QuoteID   string
	State     domain.QuoteState
	IssuedAt  time.Time
	ExpiresAt time.Time
	ClosedAt  time.Time
	OrderID   string
}

// Ledger is an in-process record of quotes seen by this instance. Quotes it
// has never seen are not judged.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func New() *Ledger {
	return newLedger(SweepInterval)
}

func newLedger(interval time.Duration) *Ledger {
	l := &Ledger{
		entries:     make(map[string]*Entry),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop(interval)

	return l
}

func (l *Ledger) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCleanup:
			return
		}
	}
}

// sweep expires lapsed ISSUED quotes and forgets closed ones past retention.
func (l *Ledger) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, e := range l.entries {
		switch {
		case e.State == domain.QuoteStateIssued && lapsed(e, now):
			e.State = domain.QuoteStateExpired
			e.ClosedAt = now
		case e.State != domain.QuoteStateIssued && now.Sub(e.ClosedAt) > Retention:
			delete(l.entries, id)
		}
	}
}

// Issue records a freshly previewed quote. Re-issuing an id resets it.
func (l *Ledger) Issue(q *domain.Quote) {
	if q == nil || q.QuoteID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[q.QuoteID] = &Entry{
		QuoteID:   q.QuoteID,
		State:     domain.QuoteStateIssued,
		IssuedAt:  l.now(),
		ExpiresAt: q.ExpiresAt,
	}
}

// Check reports whether quoteID may still be committed into an order.
func (l *Ledger) Check(quoteID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[quoteID]
	if !ok {
		return nil
	}
	switch {
	case e.State == domain.QuoteStateConsumed:
		return ErrQuoteConsumed
	case e.State == domain.QuoteStateExpired, lapsed(e, l.now()):
		return ErrQuoteExpired
	default:
		return nil
	}
}

// Consume marks quoteID as committed into orderID. Unknown ids are recorded
// as consumed.
func (l *Ledger) Consume(quoteID, orderID string) {
	if quoteID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[quoteID]
	if !ok {
		e = &Entry{QuoteID: quoteID, IssuedAt: now}
		l.entries[quoteID] = e
	}
	e.State = domain.QuoteStateConsumed
	e.ClosedAt = now
	e.OrderID = orderID
}

func (l *Ledger) State(quoteID string) (domain.QuoteState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[quoteID]
	if !ok {
		return "", false
	}
	if e.State == domain.QuoteStateIssued && lapsed(e, l.now()) {
		return domain.QuoteStateExpired, true
	}
	return e.State, true
}

// Close stops the background sweep and waits for it to finish
func (l *Ledger) Close() error {
	close(l.stopCleanup)
	l.wg.Wait()
	return nil
}

func lapsed(e *Entry, now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
