package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"holdline/internal/calls"
)

func TestProject(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(95 * time.Second)
	human := start.Add(60 * time.Second)
	ended := start.Add(80 * time.Second)

	cases := []struct {
		name    string
		call    calls.Call
		user    UserState
		bot     BotState
		company CompanyState
		elapsed int
	}{
		{"initiating", calls.Call{Status: calls.StatusInitiating}, UserMuted, BotActive, CompanyRinging, 95},
		{"navigating", calls.Call{Status: calls.StatusNavigating}, UserMuted, BotActive, CompanyHold, 95},
		{"holding", calls.Call{Status: calls.StatusHolding}, UserMuted, BotActive, CompanyHold, 95},
		{"human", calls.Call{Status: calls.StatusHuman, HumanDetectedAt: &human}, UserLive, BotIdle, CompanyHuman, 95},
		{"live", calls.Call{Status: calls.StatusLive, HumanDetectedAt: &human}, UserLive, BotIdle, CompanyHuman, 95},
		{"ended after human", calls.Call{Status: calls.StatusEnded, HumanDetectedAt: &human, EndedAt: &ended}, UserLive, BotIdle, CompanyHuman, 80},
		{"ended on hold", calls.Call{Status: calls.StatusEnded, ConferenceSID: "CF1", EndedAt: &ended}, UserMuted, BotIdle, CompanyHold, 80},
		{"failed ringing", calls.Call{Status: calls.StatusFailed, EndedAt: &ended}, UserMuted, BotIdle, CompanyRinging, 80},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.call.StartedAt = start
			s := Project(tc.call, now)
			if s.UserState != tc.user || s.BotState != tc.bot || s.CompanyState != tc.company {
				t.Fatalf("got %s/%s/%s", s.UserState, s.BotState, s.CompanyState)
			}
			if s.ElapsedSeconds != tc.elapsed {
				t.Fatalf("elapsed %d, want %d", s.ElapsedSeconds, tc.elapsed)
			}
		})
	}
}

func TestProject_CopiesIVRPath(t *testing.T) {
	c := calls.Call{Status: calls.StatusNavigating, IVRPath: []calls.IVRStep{{Input: "1"}}}
	s := Project(c, time.Now())
	s.IVRPath[0].Input = "9"
	if c.IVRPath[0].Input != "1" {
		t.Fatalf("snapshot aliases the call's ivr path")
	}
	if Project(calls.Call{}, time.Now()).IVRPath == nil {
		t.Fatalf("empty path should encode as []")
	}
}

type scriptedSource struct {
	mu       sync.Mutex
	statuses []calls.Status
	calls    int
}

func (s *scriptedSource) Get(callID string) (calls.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.statuses) {
		return calls.Call{}, calls.ErrNotFound
	}
	st := s.statuses[s.calls]
	s.calls++
	return calls.Call{ID: callID, Status: st, StartedAt: time.Now()}, nil
}

func TestStream_StopsAfterTerminalSnapshot(t *testing.T) {
	src := &scriptedSource{statuses: []calls.Status{calls.StatusHolding, calls.StatusHuman, calls.StatusEnded, calls.StatusEnded}}
	st := NewStreamer(src, 5*time.Millisecond)

	var got []calls.Status
	err := st.Stream(context.Background(), "c1", func(s Snapshot) error {
		got = append(got, s.Status)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(got) != 3 || got[2] != calls.StatusEnded {
		t.Fatalf("expected three snapshots ending in ended, got %v", got)
	}
}

func TestStream_CancelStopsLoop(t *testing.T) {
	statuses := make([]calls.Status, 1000)
	for i := range statuses {
		statuses[i] = calls.StatusHolding
	}
	src := &scriptedSource{statuses: statuses}
	st := NewStreamer(src, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := st.Stream(ctx, "c1", func(s Snapshot) error {
		n++
		if n == 2 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("cancel should end the stream cleanly, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 snapshots, got %d", n)
	}
}

func TestStream_MissingCallAndEmitError(t *testing.T) {
	st := NewStreamer(&scriptedSource{}, 5*time.Millisecond)
	if err := st.Stream(context.Background(), "gone", func(Snapshot) error { return nil }); !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	boom := errors.New("client went away")
	st = NewStreamer(&scriptedSource{statuses: []calls.Status{calls.StatusHolding, calls.StatusHolding}}, 5*time.Millisecond)
	if err := st.Stream(context.Background(), "c1", func(Snapshot) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected emit error, got %v", err)
	}
}
