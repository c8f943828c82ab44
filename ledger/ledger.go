package ledger

import (
	"stream-lab/domain"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ReasonOpeningBalance = "opening_balance"
	// DefaultRetain is how many entries per viewer stay in memory, LedgerSink keeps the full history.
	DefaultRetain = 500
)

// Ledger tracks every points mutation. Sums cover the whole history while only the
// most recent entries of each viewer are kept in memory.
// A viewer balance must always equal its sum.
type Ledger struct {
	mu      sync.RWMutex
	retain  int
	byUser  map[domain.ViewerID][]domain.LedgerEntry
	sums    map[domain.ViewerID]int64
	size    int
	dropped uint64
}

// New keeps up to retain entries per viewer, zero or less means DefaultRetain.
func New(retain int) *Ledger {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Ledger{
		retain: retain,
		byUser: make(map[domain.ViewerID][]domain.LedgerEntry),
		sums:   make(map[domain.ViewerID]int64),
	}
}

// Append records an entry and returns it with its id and time filled in.
func (l *Ledger) Append(e domain.LedgerEntry) domain.LedgerEntry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	history := append(l.byUser[e.ViewerID], e)
	if len(history) > l.retain {
		copy(history, history[1:])
		history = history[:l.retain]
		l.dropped++
	} else {
		l.size++
	}
	l.byUser[e.ViewerID] = history
	l.sums[e.ViewerID] += e.Delta
	return e
}

// Seed writes opening balances for viewers restored from a snapshot.
func (l *Ledger) Seed(viewers []domain.Viewer) {
	for _, v := range viewers {
		if v.Points == 0 {
			continue
		}
		l.Append(domain.LedgerEntry{ViewerID: v.ID, Delta: v.Points, Reason: ReasonOpeningBalance})
	}
}

func (l *Ledger) Sum(id domain.ViewerID) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sums[id]
}

// Entries returns the retained history of one viewer, oldest first.
func (l *Ledger) Entries(id domain.ViewerID) []domain.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.LedgerEntry, len(l.byUser[id]))
	copy(out, l.byUser[id])
	return out
}

// Len counts the entries held in memory.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Dropped counts entries evicted from memory, their deltas still count in Sum.
func (l *Ledger) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
