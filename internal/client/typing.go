package client

import (
	"sort"
	"sync"
	"time"
)

// DefaultTypingIdle is how long the local user must pause before the
// tracker emits a stopTyping on their behalf.
const DefaultTypingIdle = time.Second

// TypingTracker keeps the transient set of remote participants currently
// composing, and debounces the local user's keystrokes into a single
// stopTyping per idle period. The idle timer fires on its own goroutine,
// so the tracker locks internally.
type TypingTracker struct {
	mu     sync.Mutex
	names  map[string]struct{}
	idle   time.Duration
	start  func()
	stop   func()
	timer  *time.Timer
	gen    uint64
	closed bool
}

// NewTypingTracker wires the tracker to the channel emitters for the
// outbound typing and stopTyping events.
func NewTypingTracker(idle time.Duration, emitStart, emitStop func()) *TypingTracker {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingTracker{
		names: make(map[string]struct{}),
		idle:  idle,
		start: emitStart,
		stop:  emitStop,
	}
}

// Start records a remote participant as typing.
func (t *TypingTracker) Start(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[name] = struct{}{}
}

// Stop removes a remote participant from the typing set.
func (t *TypingTracker) Stop(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.names, name)
}

// Names returns who is typing right now, sorted for stable display.
func (t *TypingTracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.names))
	for n := range t.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Signal is called on every local keystroke. It emits a typing event and
// (re)arms the idle timer; when the timer outlives the last keystroke a
// single stopTyping is emitted. Debounce, not throttle: each keystroke
// pushes the stop out by a full idle period.
func (t *TypingTracker) Signal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.start()
	if t.timer != nil {
		t.timer.Stop()
	}
	// Stop may miss a timer that is already firing; the generation
	// check in fireStop keeps the superseded one from emitting.
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.idle, func() { t.fireStop(gen) })
}

func (t *TypingTracker) fireStop(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()
	t.stop()
}

// Close cancels the idle timer so nothing fires against a torn-down
// session.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
