package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowRateLimiter counts events per key in aligned windows. It backs
// the room creation quota, where a coarse per-minute budget is enough.
type FixedWindowRateLimiter struct {
	counts      sync.Map // string -> *windowCount
	limit       int
	window      time.Duration
	now         func() time.Time
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type windowCount struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func NewFixedWindowRateLimiter(limit int, window time.Duration) *FixedWindowRateLimiter {
	if window <= 0 {
		window = time.Minute
	}

	rl := &FixedWindowRateLimiter{
		limit:       limit,
		window:      window,
		now:         time.Now,
		cleanupTick: time.NewTicker(window),
		done:        make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// Allow records one event for key. When the window is spent it returns false
// and the time until the next window. A non-positive limit allows everything.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}

	now := rl.now()
	val, _ := rl.counts.LoadOrStore(key, &windowCount{})
	data := val.(*windowCount)

	data.mu.Lock()
	defer data.mu.Unlock()

	if !now.Before(data.resetAt) {
		data.count = 0
		data.resetAt = now.Truncate(rl.window).Add(rl.window)
	}

	if data.count >= rl.limit {
		return false, data.resetAt.Sub(now)
	}

	data.count++
	return true, 0
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := rl.now()
	rl.counts.Range(func(key, value any) bool {
		data := value.(*windowCount)
		data.mu.Lock()
		expired := now.After(data.resetAt)
		data.mu.Unlock()
		if expired {
			rl.counts.Delete(key)
		}
		return true
	})
}

func (rl *FixedWindowRateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
