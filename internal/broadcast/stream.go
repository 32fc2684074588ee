package broadcast

import (
	"context"
	"errors"
	"time"

	"holdline/internal/calls"
)

// DefaultInterval is the refresh period for subscribers.
const DefaultInterval = time.Second

// Source is the read side of the call registry.
type Source interface {
	Get(callID string) (calls.Call, error)
}

// Emitter receives snapshots. Returning an error stops the stream.
type Emitter func(Snapshot) error

// Streamer polls the registry for one subscriber at a time.
type Streamer struct {
	source   Source
	interval time.Duration
	clock    func() time.Time
}

func NewStreamer(source Source, interval time.Duration) *Streamer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Streamer{source: source, interval: interval, clock: time.Now}
}

// Stream emits a snapshot immediately and then every interval until the call is
// terminal (the terminal snapshot is emitted), ctx is done, or emit fails.
// A call that disappears ends the stream with calls.ErrNotFound.
func (s *Streamer) Stream(ctx context.Context, callID string, emit Emitter) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		call, err := s.source.Get(callID)
		if err != nil {
			return err
		}
		snap := Project(call, s.clock())
		if err := emit(snap); err != nil {
			return err
		}
		if call.Status.Terminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return finished(ctx)
		case <-ticker.C:
			if ctx.Err() != nil {
				return finished(ctx)
			}
		}
	}
}

// finished treats a subscriber disconnect as a normal end.
func finished(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
