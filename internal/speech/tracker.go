package speech

import (
	"context"
	"sync"
	"time"

	"holdline/pkg/logger"
)

const (
	DefaultTrigger     = 3
	DefaultDecayWindow = 5 * time.Second

	// An utterance with no stop event for this long is treated as abandoned.
	abandonedUtterance = time.Hour
)

type state struct {
	count     int
	lastOnset time.Time
	lastStop  time.Time
	stopped   bool
}

// Tracker counts consecutive speech onsets per call.
// Times passed in must come from a monotonic clock (time.Now, not wall-clock parsing).
type Tracker struct {
	mu      sync.Mutex
	calls   map[string]*state
	trigger int
	decay   time.Duration
}

func NewTracker(trigger int, decay time.Duration) *Tracker {
	if trigger <= 0 {
		trigger = DefaultTrigger
	}
	if decay <= 0 {
		decay = DefaultDecayWindow
	}
	return &Tracker{calls: make(map[string]*state), trigger: trigger, decay: decay}
}

// Onset is the tracker state after a speech start.
type Onset struct {
	Count     int
	Triggered bool
}

// OnSpeechStart records an onset. If the previous onset was followed by a stop
// and is older than the decay window, the count restarts.
func (t *Tracker) OnSpeechStart(callID string, now time.Time) Onset {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.calls[callID]
	if !ok {
		st = &state{}
		t.calls[callID] = st
	}
	if st.count > 0 && st.stopped && now.Sub(st.lastOnset) > t.decay {
		st.count = 0
	}
	st.count++
	st.lastOnset = now
	st.stopped = false
	return Onset{Count: st.count, Triggered: st.count >= t.trigger}
}

// OnSpeechStop records the end of an utterance. Stops for unknown calls are ignored.
func (t *Tracker) OnSpeechStop(callID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.calls[callID]; ok {
		st.lastStop = now
		st.stopped = true
	}
}

// Count reports the current onset count for a call.
func (t *Tracker) Count(callID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.calls[callID]; ok {
		return st.count
	}
	return 0
}

func (t *Tracker) Forget(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.calls, callID)
}

// Sweep drops states that have been quiet for longer than the decay window.
// A call whose speaker is mid-utterance is kept, matching OnSpeechStart.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, st := range t.calls {
		if st.stopped && now.Sub(st.lastStop) <= t.decay {
			continue
		}
		if !st.stopped && now.Sub(st.lastOnset) <= abandonedUtterance {
			continue
		}
		delete(t.calls, id)
		n++
	}
	return n
}

func (t *Tracker) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = t.decay
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := t.Sweep(now); n > 0 {
					logger.From(ctx).Debug("swept speech states", "count", n)
				}
			}
		}
	}()
}
