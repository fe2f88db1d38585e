package game

import (
	"sync"
	"time"
)

// roundTimers holds at most one pending round timer per session code.
type roundTimers struct {
	mu     sync.Mutex
	timers map[string]*roundTimer
	seq    uint64
}

type roundTimer struct {
	timer *time.Timer
	gen   uint64
}

func newRoundTimers() *roundTimers {
	return &roundTimers{timers: make(map[string]*roundTimer)}
}

// arm schedules fn for code after d, replacing any timer already pending for it.
// A replaced timer that has already fired will not run fn.
func (rt *roundTimers) arm(code string, d time.Duration, fn func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if old, ok := rt.timers[code]; ok {
		old.timer.Stop()
	}

	rt.seq++
	gen := rt.seq
	entry := &roundTimer{gen: gen}
	entry.timer = time.AfterFunc(d, func() {
		rt.mu.Lock()
		current, ok := rt.timers[code]
		if !ok || current.gen != gen {
			rt.mu.Unlock()
			return
		}
		delete(rt.timers, code)
		rt.mu.Unlock()
		fn()
	})
	rt.timers[code] = entry
}

// cancel stops the pending timer for code. Missing timers are ignored.
func (rt *roundTimers) cancel(code string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if t, ok := rt.timers[code]; ok {
		t.timer.Stop()
		delete(rt.timers, code)
	}
}

func (rt *roundTimers) pending(code string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, ok := rt.timers[code]
	return ok
}

// stopAll cancels every pending timer, used on shutdown.
func (rt *roundTimers) stopAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for code, t := range rt.timers {
		t.timer.Stop()
		delete(rt.timers, code)
	}
}
