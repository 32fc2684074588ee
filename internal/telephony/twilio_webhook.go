package telephony

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"holdline/internal/ingest"
)

// Twilio posts application/x-www-form-urlencoded callbacks. Identifiers we put
// in callback URLs (callId, conference, role) arrive as query parameters.
//
// Parsing only; decisions are made by internal/ingest.

var ErrMissingField = errors.New("telephony: missing webhook field")

// ParseStatusCallback reads a call status or async machine-detection callback.
func ParseStatusCallback(r *http.Request) (ingest.StatusEvent, error) {
	if err := r.ParseForm(); err != nil {
		return ingest.StatusEvent{}, err
	}
	ev := ingest.StatusEvent{
		CallID:          strings.TrimSpace(r.URL.Query().Get("callId")),
		ProviderCallSID: r.PostFormValue("CallSid"),
		Token:           strings.TrimSpace(r.PostFormValue("CallStatus")),
		AnsweredBy:      strings.TrimSpace(r.PostFormValue("AnsweredBy")),
	}
	if ev.CallID == "" {
		return ev, ErrMissingField
	}
	// Async AMD callbacks carry AnsweredBy without CallStatus; the call is up.
	if ev.Token == "" && ev.AnsweredBy != "" {
		ev.Token = "answered"
	}
	return ev, nil
}

// ParseConferenceCallback reads a conference status callback. Speaker events
// become SpeechEvents; everything else is a ConferenceEvent.
func ParseConferenceCallback(r *http.Request) (ingest.Event, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(r.URL.Query().Get("conference"))
	if name == "" {
		name = strings.TrimSpace(r.PostFormValue("FriendlyName"))
	}
	kind := strings.TrimSpace(r.PostFormValue("StatusCallbackEvent"))
	if name == "" || kind == "" {
		return nil, ErrMissingField
	}
	role := ingest.LegRole(r.URL.Query().Get("role"))

	switch kind {
	case "participant-speech-start", "participant-speech-stop":
		if role != ingest.RoleUser {
			sk := ingest.SpeechStart
			if kind == "participant-speech-stop" {
				sk = ingest.SpeechStop
			}
			return ingest.SpeechEvent{ConferenceName: name, Kind: sk}, nil
		}
	}
	return ingest.ConferenceEvent{
		ConferenceName: name,
		Kind:           ingest.ConferenceKind(kind),
		ConferenceSID:  r.PostFormValue("ConferenceSid"),
		ParticipantSID: r.PostFormValue("CallSid"),
		Role:           role,
	}, nil
}

type transcriptionData struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// ParseTranscriptionCallback reads a real-time transcription callback.
// ok is false for lifecycle callbacks that carry no text.
func ParseTranscriptionCallback(r *http.Request) (ev ingest.TranscriptEvent, ok bool, err error) {
	if err := r.ParseForm(); err != nil {
		return ingest.TranscriptEvent{}, false, err
	}
	ev.CallID = strings.TrimSpace(r.URL.Query().Get("callId"))
	if ev.CallID == "" {
		return ev, false, ErrMissingField
	}

	// Recording transcriptions post the text directly.
	if text := strings.TrimSpace(r.PostFormValue("TranscriptionText")); text != "" {
		ev.Text = text
		ev.Final = true
		return ev, true, nil
	}

	if r.PostFormValue("TranscriptionEvent") != "transcription-content" {
		return ev, false, nil
	}
	var data transcriptionData
	if err := json.Unmarshal([]byte(r.PostFormValue("TranscriptionData")), &data); err != nil {
		return ev, false, err
	}
	ev.Text = strings.TrimSpace(data.Transcript)
	ev.Final = strings.EqualFold(r.PostFormValue("Final"), "true")
	return ev, ev.Text != "", nil
}
