package transport

import (
	"sync"
	"time"
)

const defaultBufferSize = 100

// Entry is one logical request in the diagnostics ring buffer.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Label      string    `json:"label"`
	Attempts   int       `json:"attempts"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
}

// Counters are cumulative since process start.
type Counters struct {
	Total         int64 `json:"total"`
	Success       int64 `json:"success"`
	Retried       int64 `json:"retried"`
	Failed        int64 `json:"failed"`
	BotChallenges int64 `json:"botChallenges"`
}

// Snapshot is a point-in-time copy of the diagnostics.
type Snapshot struct {
	Counters     Counters `json:"counters"`
	BreakerState string   `json:"breakerState,omitempty"`
	Recent       []Entry  `json:"recent"`
}

// Diagnostics keeps counters and a bounded ring of recent requests.
type Diagnostics struct {
	mu       sync.Mutex
	counters Counters
	ring     []Entry
	next     int
	full     bool
}

// NewDiagnostics creates a buffer holding at most capacity entries.
func NewDiagnostics(capacity int) *Diagnostics {
	if capacity <= 0 {
		capacity = defaultBufferSize
	}
	return &Diagnostics{ring: make([]Entry, capacity)}
}

func (d *Diagnostics) record(e Entry, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counters.Total++
	if ok {
		d.counters.Success++
	} else {
		d.counters.Failed++
	}
	if e.Attempts > 1 {
		d.counters.Retried++
	}

	d.ring[d.next] = e
	d.next = (d.next + 1) % len(d.ring)
	if d.next == 0 {
		d.full = true
	}
}

func (d *Diagnostics) botChallenge() {
	d.mu.Lock()
	d.counters.BotChallenges++
	d.mu.Unlock()
}

// Snapshot returns counters and recent entries, oldest first.
func (d *Diagnostics) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	var recent []Entry
	if d.full {
		recent = make([]Entry, 0, len(d.ring))
		recent = append(recent, d.ring[d.next:]...)
		recent = append(recent, d.ring[:d.next]...)
	} else {
		recent = append(make([]Entry, 0, d.next), d.ring[:d.next]...)
	}
	return Snapshot{Counters: d.counters, Recent: recent}
}
