package scheduler

import (
	"context"
	"sync"
	"time"

	"newstack/internal/ports"
)

const defaultTick = time.Second

// Countdown fires a job every interval, counting down in fixed ticks so the
// time left can be displayed. A zero interval disables it.
type Countdown struct {
	interval time.Duration
	tick     time.Duration

	mu        sync.Mutex
	remaining time.Duration
	stop      chan struct{}
	done      chan struct{}
}

var _ ports.Scheduler = (*Countdown)(nil)

// NewCountdown builds a countdown; tick defaults to one second.
func NewCountdown(interval, tick time.Duration) *Countdown {
	if tick <= 0 {
		tick = defaultTick
	}
	if interval > 0 && tick > interval {
		tick = interval
	}
	return &Countdown{interval: interval, tick: tick, remaining: interval}
}

// Enabled reports whether the countdown will ever fire.
func (c *Countdown) Enabled() bool {
	return c.interval > 0
}

// Interval returns the configured period.
func (c *Countdown) Interval() time.Duration {
	return c.interval
}

// Remaining returns the time left until the next fire.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Start begins counting down; the job runs on the countdown goroutine and the
// countdown resets once it returns.
func (c *Countdown) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || !c.Enabled() {
		return nil
	}

	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return nil
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.remaining = c.interval
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer c.detach(stop)
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case t := <-ticker.C:
				if c.advance() {
					job(t)
					c.Reset()
				}
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the countdown goroutine and waits for it to exit.
func (c *Countdown) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// detach forgets a goroutine that exited on its own so Start can run again.
func (c *Countdown) detach(stop chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == stop {
		c.stop, c.done = nil, nil
	}
}

func (c *Countdown) advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining -= c.tick
	if c.remaining < 0 {
		c.remaining = 0
	}
	return c.remaining == 0
}

// Reset restarts the countdown from the full interval.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = c.interval
}
