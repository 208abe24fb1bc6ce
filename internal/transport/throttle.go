package transport

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle enforces a minimum inter-emit interval for ephemeral sends.
// When a send arrives too early it replaces any pending send and is
// flushed once the interval elapses: latest value wins, nothing queues,
// and the caller never sees backpressure.
type throttle struct {
	interval time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
	pending func()
	timer   *time.Timer
}

func newThrottle(minInterval time.Duration) *throttle {
	return &throttle{
		interval: minInterval,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (t *throttle) Do(send func()) {
	t.mu.Lock()
	if t.limiter.Allow() {
		t.pending = nil
		t.mu.Unlock()
		send()
		return
	}
	t.pending = send
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval, t.flush)
	}
	t.mu.Unlock()
}

func (t *throttle) flush() {
	t.mu.Lock()
	if t.pending == nil {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	// The flushed send consumes a token too, so the next Do cannot land
	// inside the minimum interval right after a flush.
	if !t.limiter.Allow() {
		t.timer = time.AfterFunc(t.interval, t.flush)
		t.mu.Unlock()
		return
	}
	send := t.pending
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()
	send()
}
