package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"holdline/internal/calls"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	b, _ := io.ReadAll(rec.Body)
	return string(b)
}

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics("holdline")
	ctx := context.Background()

	start := time.Unix(1700000000, 0).UTC()
	human := start.Add(90 * time.Second)
	call := calls.Call{ID: "c1", StartedAt: start, HumanDetectedAt: &human}

	m.TransitionApplied(ctx, calls.Change{CallID: "c1", From: calls.StatusHolding, To: calls.StatusHuman, Applied: true}, call)
	m.TransitionApplied(ctx, calls.Change{CallID: "c1", From: calls.StatusHuman, To: calls.StatusHuman}, call)
	m.IVRStepAppended(ctx, "c1", calls.IVRStep{Input: "1"})
	m.HumanDetected("lexical")
	m.EventDropped("unknown_call")
	m.EventDropped("unknown_call")
	m.NotificationSent("sms", true)
	m.NotificationSent("push", false)
	m.MediaStreamOpened()
	m.MediaStreamOpened()
	m.MediaStreamClosed()

	body := scrape(t, m)
	for _, want := range []string{
		`holdline_call_transitions_total{to="human"} 1`,
		`holdline_ivr_steps_total 1`,
		`holdline_human_detections_total{source="lexical"} 1`,
		`holdline_dropped_events_total{reason="unknown_call"} 2`,
		`holdline_notifications_total{channel="sms",outcome="success"} 1`,
		`holdline_notifications_total{channel="push",outcome="error"} 1`,
		`holdline_active_media_streams 1`,
		`holdline_hold_duration_seconds_count 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected exposition to contain %q", want)
		}
	}
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("holdline")
	b := NewMetrics("holdline")
	a.HumanDetected("provider")
	if strings.Contains(scrape(t, b), `source="provider"`) {
		t.Fatalf("metrics leaked across registries")
	}
}
