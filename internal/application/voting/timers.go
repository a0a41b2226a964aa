package voting

import (
	"sync"
	"time"
)

type pendingTimer struct {
	timer *time.Timer
}

// timerSet owns at most one pending auto-stop per room code. Arming a code
// again supersedes the earlier timer, which then never fires.
type timerSet struct {
	mu     sync.Mutex
	timers map[string]*pendingTimer
	closed bool
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[string]*pendingTimer)}
}

func (t *timerSet) arm(code string, d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if old, ok := t.timers[code]; ok {
		old.timer.Stop()
	}

	entry := &pendingTimer{}
	entry.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		current := t.timers[code] == entry
		if current {
			delete(t.timers, code)
		}
		t.mu.Unlock()

		if current {
			fire()
		}
	})
	t.timers[code] = entry
}

// cancel reports whether a pending timer was stopped.
func (t *timerSet) cancel(code string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.timers[code]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(t.timers, code)
	return true
}

func (t *timerSet) pending(code string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[code]
	return ok
}

func (t *timerSet) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for code, entry := range t.timers {
		entry.timer.Stop()
		delete(t.timers, code)
	}
	t.closed = true
}
