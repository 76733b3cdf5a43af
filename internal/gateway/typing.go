package gateway

import (
	"sync"
	"time"
)

type memberKey struct {
	groupID int64
	userID  int64
}

type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

// typingTracker debounces typing indicators per (group, user). A refresh
// replaces the pending timer; only the newest timer may expire the entry.
type typingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	gen     uint64
	entries map[memberKey]*typingEntry
}

func newTypingTracker(timeout time.Duration) *typingTracker {
	return &typingTracker{timeout: timeout, entries: make(map[memberKey]*typingEntry)}
}

// start arms or refreshes the timer and reports whether typing just began.
func (t *typingTracker) start(k memberKey, onExpire func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, existed := t.entries[k]
	if existed {
		prev.timer.Stop()
	}
	t.gen++
	gen := t.gen
	e := &typingEntry{gen: gen}
	e.timer = time.AfterFunc(t.timeout, func() {
		if t.expire(k, gen) {
			onExpire()
		}
	})
	t.entries[k] = e
	return !existed
}

func (t *typingTracker) expire(k memberKey, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[k]
	if !ok || e.gen != gen {
		return false
	}
	delete(t.entries, k)
	return true
}

// stop reports whether the user was typing.
func (t *typingTracker) stop(k memberKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[k]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, k)
	return true
}

func (t *typingTracker) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, k)
	}
}
