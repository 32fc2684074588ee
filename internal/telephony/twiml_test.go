package telephony

import (
	"strings"
	"testing"

	"holdline/internal/ingest"
)

func TestRenderConferenceLeg_Target(t *testing.T) {
	cb := Callbacks{Base: "https://hold.example.com/"}
	out, err := RenderConferenceLeg(cb, Leg{CallID: "c1", Conference: "onhold-c1", Role: ingest.RoleTarget})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`<Stream url="wss://hold.example.com/webhooks/twilio/media" track="inbound_track">`,
		`<Parameter name="callId" value="c1"></Parameter>`,
		`statusCallbackUrl="https://hold.example.com/webhooks/twilio/transcription?callId=c1"`,
		`startConferenceOnEnter="true"`,
		`endConferenceOnExit="true"`,
		`statusCallbackEvent="start end join leave mute hold speaker"`,
		`conference=onhold-c1&amp;role=target`,
		`>onhold-c1</Conference>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "waitUrl") {
		t.Fatalf("target leg should keep default wait music")
	}
}

func TestRenderConferenceLeg_User(t *testing.T) {
	out, err := RenderConferenceLeg(Callbacks{Base: "http://localhost:8080"}, Leg{Conference: "onhold-c1", Role: ingest.RoleUser})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{`muted="true"`, `beep="false"`, `startConferenceOnEnter="false"`, `endConferenceOnExit="false"`, `waitUrl=""`, `role=user`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<Stream") {
		t.Fatalf("user leg must not be streamed")
	}
}

func TestRenderConferenceLeg_Errors(t *testing.T) {
	if _, err := RenderConferenceLeg(Callbacks{}, Leg{Role: ingest.RoleUser}); err == nil {
		t.Fatalf("expected error without conference")
	}
	if _, err := RenderConferenceLeg(Callbacks{}, Leg{Conference: "x", Role: "spy"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestRenderGreetingAndFailure(t *testing.T) {
	out, err := RenderGreeting()
	if err != nil || !strings.Contains(out, "<Say>") || !strings.Contains(out, `<Pause length="1">`) {
		t.Fatalf("unexpected greeting %q %v", out, err)
	}
	if f := RenderFailure(); !strings.Contains(f, "<Hangup>") {
		t.Fatalf("unexpected failure twiml %q", f)
	}
}
