package signal

import (
	"sync"
	"time"
)

const historyRetention = 7 * 24 * time.Hour

type historyEntry struct {
	symbol    string
	timestamp time.Time
}

// History is the rolling record of emitted signals, used for the hourly
// trade-frequency check. Entries are pruned by age on every insert.
type History struct {
	mu      sync.Mutex
	entries []historyEntry
}

func NewHistory() *History {
	return &History{}
}

// Record notes a signal emission and prunes expired entries.
func (h *History) Record(symbol string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := at.Add(-historyRetention)
	kept := h.entries[:0]
	for _, e := range h.entries {
		if e.timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	h.entries = append(kept, historyEntry{symbol: symbol, timestamp: at})
}

// RecentCount returns how many signals were recorded for symbol within the
// trailing window.
func (h *History) RecentCount(symbol string, window time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-window)
	count := 0
	for _, e := range h.entries {
		if e.symbol == symbol && e.timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
