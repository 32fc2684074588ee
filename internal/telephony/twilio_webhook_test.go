package telephony

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"holdline/internal/ingest"
)

func formRequest(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseStatusCallback(t *testing.T) {
	r := formRequest("/webhooks/twilio/status?callId=c1", url.Values{"CallSid": {"CA123"}, "CallStatus": {"ringing"}})
	ev, err := ParseStatusCallback(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.CallID != "c1" || ev.ProviderCallSID != "CA123" || ev.Token != "ringing" {
		t.Fatalf("unexpected event %+v", ev)
	}

	amd := formRequest("/webhooks/twilio/status?callId=c1", url.Values{"CallSid": {"CA123"}, "AnsweredBy": {"human"}})
	ev, err = ParseStatusCallback(amd)
	if err != nil || ev.Token != "answered" || ev.AnsweredBy != "human" {
		t.Fatalf("async amd not normalized: %+v %v", ev, err)
	}

	if _, err := ParseStatusCallback(formRequest("/webhooks/twilio/status", url.Values{"CallStatus": {"ringing"}})); err != ErrMissingField {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestParseConferenceCallback(t *testing.T) {
	join := formRequest("/webhooks/twilio/conference?conference=onhold-c1&role=target", url.Values{
		"StatusCallbackEvent": {"participant-join"},
		"ConferenceSid":       {"CF1"},
		"CallSid":             {"CA1"},
	})
	ev, err := ParseConferenceCallback(join)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ce, ok := ev.(ingest.ConferenceEvent)
	if !ok {
		t.Fatalf("expected ConferenceEvent, got %T", ev)
	}
	if ce.Kind != ingest.ParticipantJoin || ce.Role != ingest.RoleTarget || ce.ConferenceSID != "CF1" || ce.ParticipantSID != "CA1" {
		t.Fatalf("unexpected event %+v", ce)
	}

	speech := formRequest("/webhooks/twilio/conference", url.Values{
		"StatusCallbackEvent": {"participant-speech-stop"},
		"FriendlyName":        {"onhold-c1"},
	})
	ev, err = ParseConferenceCallback(speech)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	se, ok := ev.(ingest.SpeechEvent)
	if !ok || se.Kind != ingest.SpeechStop || se.ConferenceName != "onhold-c1" {
		t.Fatalf("expected speech stop, got %#v", ev)
	}

	userSpeech := formRequest("/webhooks/twilio/conference?conference=onhold-c1&role=user", url.Values{
		"StatusCallbackEvent": {"participant-speech-start"},
	})
	if ev, _ := ParseConferenceCallback(userSpeech); ev == nil {
		t.Fatalf("expected event")
	} else if _, isSpeech := ev.(ingest.SpeechEvent); isSpeech {
		t.Fatalf("user leg speech must not feed the tracker")
	}

	if _, err := ParseConferenceCallback(formRequest("/webhooks/twilio/conference", url.Values{})); err != ErrMissingField {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestParseTranscriptionCallback(t *testing.T) {
	r := formRequest("/webhooks/twilio/transcription?callId=c1", url.Values{
		"TranscriptionEvent": {"transcription-content"},
		"TranscriptionData":  {`{"transcript":"How can I help you?","confidence":0.93}`},
		"Final":              {"true"},
	})
	ev, ok, err := ParseTranscriptionCallback(r)
	if err != nil || !ok {
		t.Fatalf("parse: ok=%v err=%v", ok, err)
	}
	if ev.Text != "How can I help you?" || !ev.Final || ev.CallID != "c1" {
		t.Fatalf("unexpected event %+v", ev)
	}

	started := formRequest("/webhooks/twilio/transcription?callId=c1", url.Values{"TranscriptionEvent": {"transcription-started"}})
	if _, ok, err := ParseTranscriptionCallback(started); ok || err != nil {
		t.Fatalf("lifecycle callback should be skipped, ok=%v err=%v", ok, err)
	}

	legacy := formRequest("/webhooks/twilio/transcription?callId=c1", url.Values{"TranscriptionText": {"please hold"}})
	if ev, ok, _ := ParseTranscriptionCallback(legacy); !ok || ev.Text != "please hold" || !ev.Final {
		t.Fatalf("recording transcription not parsed: %+v", ev)
	}
}
