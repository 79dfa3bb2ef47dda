package remote

import (
	"sync"
	"time"
)

// quietCollector sums rotary steps and flushes the total after a quiet
// period with no new steps.
type quietCollector struct {
	mu      sync.Mutex
	steps   int
	eventID string
	timer   *time.Timer
	quiet   time.Duration
	onFlush func(steps int, eventID string)
}

func newQuietCollector(quiet time.Duration, onFlush func(steps int, eventID string)) *quietCollector {
	return &quietCollector{quiet: quiet, onFlush: onFlush}
}

// add accumulates signed steps and resets the quiet timer. The first event
// ID of a burst identifies the flushed command.
func (c *quietCollector) add(steps int, eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.steps == 0 && c.eventID == "" {
		c.eventID = eventID
	}
	c.steps += steps

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, c.flush)
}

func (c *quietCollector) flush() {
	c.mu.Lock()
	steps, eventID := c.steps, c.eventID
	c.steps, c.eventID = 0, ""
	c.mu.Unlock()

	if steps != 0 {
		c.onFlush(steps, eventID)
	}
}

// close stops the timer; pending steps are dropped.
func (c *quietCollector) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}
