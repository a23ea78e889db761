package views

import (
	"sync"
	"time"
)

// View names carried in events
const (
	ViewShell      = "shell"
	ViewEquipment  = "equipment"
	ViewOverview   = "overview"
	ViewAdmin      = "admin"
	ViewSuggestion = "suggestion"
	ViewUpgrade    = "upgrade"
)

// Event announces that a view's visible state changed and should be
// re-rendered.
type Event struct {
	View string    `json:"view"`
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
}

// Bus fans change events out to subscribers. Slow subscribers miss events
// rather than block publishers. A nil *Bus drops everything.
type Bus struct {
	mu   sync.Mutex
	seq  uint64
	next int
	subs map[int]chan Event
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish announces a change of view
func (b *Bus) Publish(view string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev := Event{View: view, Seq: b.seq, At: time.Now()}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a listener. The returned func unsubscribes and closes
// the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
