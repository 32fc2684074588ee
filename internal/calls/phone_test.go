package calls

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1-800-934-6489", want: "+18009346489"},
		{in: "(415) 555-0132", want: "+14155550132"},
		{in: "+44 20 7183 8750", want: "+442071838750"},
		{in: "555-0123", wantErr: true},
		{in: "", wantErr: true},
		{in: "1234567890123456", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidPhone) {
				t.Fatalf("%q: expected ErrInvalidPhone, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusLive, StatusEnded) || !CanTransition(StatusInitiating, StatusFailed) {
		t.Fatalf("terminal statuses must be reachable from every non-terminal status")
	}
	if CanTransition(StatusEnded, StatusFailed) {
		t.Fatalf("terminal statuses are final")
	}
	if CanTransition(StatusHolding, StatusNavigating) {
		t.Fatalf("transitions are monotonic")
	}
}
