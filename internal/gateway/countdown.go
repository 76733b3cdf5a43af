package gateway

import (
	"sync"
	"time"
)

// countdowns holds fire-and-forget timers so shutdown can stop them.
// Nothing survives a restart.
type countdowns struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newCountdowns() *countdowns {
	return &countdowns{timers: make(map[string]*time.Timer)}
}

func (c *countdowns) schedule(id string, d time.Duration, fire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[id] = time.AfterFunc(d, func() {
		c.mu.Lock()
		delete(c.timers, id)
		c.mu.Unlock()
		fire()
	})
}

func (c *countdowns) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *countdowns) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
