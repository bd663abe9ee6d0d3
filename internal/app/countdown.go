package app

import (
	"context"
	"sync"
	"time"
)

// Ticker is the part of time.Ticker a Countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Countdown decrements a remaining-seconds counter once per second until it
// reaches zero or is stopped. Reaching zero has no side effect beyond the
// final onTick call.
type Countdown struct {
	newTicker TickerFactory
	onTick    func(remaining int)

	mu        sync.Mutex
	remaining int
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCountdown(seconds int, newTicker TickerFactory, onTick func(remaining int)) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	if newTicker == nil {
		newTicker = NewStdTicker
	}
	return &Countdown{newTicker: newTicker, onTick: onTick, remaining: seconds}
}

// Start launches the ticking goroutine. Calling it again is a no-op.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.newTicker(time.Second), c.done)
}

func (c *Countdown) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	if c.Remaining() == 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			left := c.Tick()
			if ctx.Err() != nil {
				return
			}
			if c.onTick != nil {
				c.onTick(left)
			}
			if left == 0 {
				return
			}
		}
	}
}

// Tick decrements the counter unless it is already zero and returns what is left.
func (c *Countdown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop cancels the goroutine and waits for it to exit. Safe to call more
// than once and on a countdown that was never started.
func (c *Countdown) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
