package speech

import (
	"testing"
	"time"
)

func TestTracker_ThreeOnsetsTrigger(t *testing.T) {
	tr := NewTracker(3, 5*time.Second)
	base := time.Now()

	if o := tr.OnSpeechStart("c1", base); o.Triggered || o.Count != 1 {
		t.Fatalf("first onset: %+v", o)
	}
	tr.OnSpeechStop("c1", base.Add(500*time.Millisecond))
	if o := tr.OnSpeechStart("c1", base.Add(time.Second)); o.Triggered {
		t.Fatalf("second onset should not trigger: %+v", o)
	}
	tr.OnSpeechStop("c1", base.Add(1500*time.Millisecond))
	o := tr.OnSpeechStart("c1", base.Add(2*time.Second))
	if !o.Triggered || o.Count != 3 {
		t.Fatalf("third onset should trigger: %+v", o)
	}
}

func TestTracker_DecayAfterStop(t *testing.T) {
	tr := NewTracker(3, 5*time.Second)
	base := time.Now()

	tr.OnSpeechStart("c1", base)
	tr.OnSpeechStart("c1", base.Add(time.Second))
	tr.OnSpeechStop("c1", base.Add(2*time.Second))

	o := tr.OnSpeechStart("c1", base.Add(7*time.Second))
	if o.Count != 1 {
		t.Fatalf("expected reset after quiet gap, got %+v", o)
	}
}

func TestTracker_NoDecayWithoutStop(t *testing.T) {
	tr := NewTracker(3, 5*time.Second)
	base := time.Now()

	tr.OnSpeechStart("c1", base)
	tr.OnSpeechStart("c1", base.Add(time.Second))
	o := tr.OnSpeechStart("c1", base.Add(10*time.Second))
	if o.Count != 3 || !o.Triggered {
		t.Fatalf("continuous speech should keep counting, got %+v", o)
	}
}

func TestTracker_CallsAreIndependent(t *testing.T) {
	tr := NewTracker(3, 5*time.Second)
	now := time.Now()
	tr.OnSpeechStart("a", now)
	tr.OnSpeechStart("a", now)
	tr.OnSpeechStart("b", now)
	if tr.Count("a") != 2 || tr.Count("b") != 1 {
		t.Fatalf("unexpected counts a=%d b=%d", tr.Count("a"), tr.Count("b"))
	}
	tr.Forget("a")
	if tr.Count("a") != 0 {
		t.Fatalf("forget should drop state")
	}
}

func TestTracker_SweepAndStopForUnknownCall(t *testing.T) {
	tr := NewTracker(0, 0)
	now := time.Now()
	tr.OnSpeechStop("ghost", now)
	if tr.Count("ghost") != 0 {
		t.Fatalf("stop must not create state")
	}

	tr.OnSpeechStart("old", now)
	tr.OnSpeechStop("old", now.Add(500*time.Millisecond))
	tr.OnSpeechStart("fresh", now.Add(4*time.Second))
	tr.OnSpeechStop("fresh", now.Add(4500*time.Millisecond))
	if n := tr.Sweep(now.Add(6 * time.Second)); n != 1 {
		t.Fatalf("expected one swept state, got %d", n)
	}
	if tr.Count("old") != 0 || tr.Count("fresh") != 1 {
		t.Fatalf("wrong state swept")
	}
}

func TestTracker_SweepKeepsOpenUtterance(t *testing.T) {
	tr := NewTracker(3, 5*time.Second)
	base := time.Now()

	tr.OnSpeechStart("c1", base)
	tr.OnSpeechStart("c1", base.Add(time.Second))
	if n := tr.Sweep(base.Add(7 * time.Second)); n != 0 {
		t.Fatalf("sweep removed a call that is still speaking (%d)", n)
	}
	o := tr.OnSpeechStart("c1", base.Add(8*time.Second))
	if o.Count != 3 || !o.Triggered {
		t.Fatalf("count lost across sweep, got %+v", o)
	}

	if n := tr.Sweep(base.Add(2 * time.Hour)); n != 1 {
		t.Fatalf("abandoned utterance should be swept, got %d", n)
	}
}
