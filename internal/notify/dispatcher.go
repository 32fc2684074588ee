package notify

import (
	"context"
	"sync"
	"time"

	"holdline/internal/calls"
	"holdline/pkg/logger"
)

// Outcome is the result of one channel attempt.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result holds one Outcome per attempted channel. Disabled channels are absent.
type Result map[ChannelName]Outcome

// Recorder observes channel outcomes, typically for metrics.
type Recorder interface {
	NotificationSent(channel string, success bool)
}

// CallLookup reports whether a call is still live.
type CallLookup interface {
	Active(callID string) bool
}

// Dispatcher fans a human-detected alert out to the user's channels.
//
// Fire is one-shot per call: the first call wins, later ones are ignored
// until Forget clears the gate.
type Dispatcher struct {
	channels []Channel
	prefs    PreferenceStore
	timeout  time.Duration
	recorder Recorder
	calls    CallLookup

	mu    sync.Mutex
	fired map[string]struct{}
	wg    sync.WaitGroup
}

func NewDispatcher(prefs PreferenceStore, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		channels: channels,
		prefs:    prefs,
		timeout:  timeout,
		fired:    make(map[string]struct{}),
	}
}

func (d *Dispatcher) WithRecorder(r Recorder) *Dispatcher {
	d.recorder = r
	return d
}

// WithLookup lets Fire clear its gate for calls that ended while it was dispatching.
func (d *Dispatcher) WithLookup(l CallLookup) *Dispatcher {
	d.calls = l
	return d
}

// Dispatch sends to every enabled channel concurrently and waits for all of them.
// Failures are recorded, never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, call calls.Call, p Preferences) Result {
	msg := BuildMessage(call)
	log := logger.ForCall(ctx, call.ID)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = make(Result)
	)
	for _, ch := range d.channels {
		if !ch.Enabled(p) {
			continue
		}
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			out := Outcome{Success: true}
			if err := ch.Send(ctx, p, msg); err != nil {
				out = Outcome{Error: err.Error()}
				log.Warn("notification failed", "channel", ch.Name(), "err", err)
			} else {
				log.Info("notification sent", "channel", ch.Name())
			}
			if d.recorder != nil {
				d.recorder.NotificationSent(string(ch.Name()), out.Success)
			}
			mu.Lock()
			res[ch.Name()] = out
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return res
}

// Fire dispatches asynchronously for a call that just reached human.
// It reports whether this invocation claimed the call's one-shot gate.
func (d *Dispatcher) Fire(ctx context.Context, call calls.Call) bool {
	d.mu.Lock()
	if _, done := d.fired[call.ID]; done {
		d.mu.Unlock()
		return false
	}
	d.fired[call.ID] = struct{}{}
	d.mu.Unlock()

	// Detach from the webhook request; the dispatch outlives it.
	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Teardown may have run Forget before the gate was claimed.
		defer func() {
			if d.calls != nil && !d.calls.Active(call.ID) {
				d.Forget(call.ID)
			}
		}()
		ctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		p, err := d.prefs.Get(ctx, call.UserID)
		if err != nil {
			logger.ForCall(ctx, call.ID).Error("load notification preferences", "err", err)
			return
		}
		d.Dispatch(ctx, call, p)
	}()
	return true
}

// Forget clears the one-shot gate once the call is torn down.
func (d *Dispatcher) Forget(callID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fired, callID)
}

// Pending reports how many calls hold a one-shot gate.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fired)
}

// Wait blocks until every in-flight Fire has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
