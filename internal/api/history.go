package api

import (
	"sync"

	"github.com/ccugym/gymdash/internal/views"
)

// UpdateHistory is a thread-safe ring buffer of admin equipment updates
type UpdateHistory struct {
	mu      sync.RWMutex
	entries []views.UpdateResult
	cap     int
}

// NewUpdateHistory creates a new history with the given capacity
func NewUpdateHistory(capacity int) *UpdateHistory {
	return &UpdateHistory{
		entries: make([]views.UpdateResult, 0, capacity),
		cap:     capacity,
	}
}

// Add records one update attempt
func (h *UpdateHistory) Add(res views.UpdateResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = res
	} else {
		h.entries = append(h.entries, res)
	}
}

// Entries returns all records (newest first)
func (h *UpdateHistory) Entries() []views.UpdateResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]views.UpdateResult, len(h.entries))
	for i, j := 0, len(h.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = h.entries[j]
	}
	return result
}

// Failed returns how many of the recorded attempts failed
func (h *UpdateHistory) Failed() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, e := range h.entries {
		if !e.OK {
			n++
		}
	}
	return n
}
