package telephony

import (
	"net/url"
	"strings"
)

// Callbacks builds the provider-facing URLs for one call. Base is the public
// service URL without a trailing slash.
type Callbacks struct {
	Base string
}

func (cb Callbacks) url(path string, q url.Values) string {
	u := strings.TrimRight(cb.Base, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Voice is the TwiML URL a leg fetches when answered.
func (cb Callbacks) Voice(callID, conference, role string) string {
	return cb.url("/webhooks/twilio/voice", url.Values{
		"action":     {ActionJoinConference},
		"callId":     {callID},
		"conference": {conference},
		"role":       {role},
	})
}

func (cb Callbacks) Status(callID string) string {
	return cb.url("/webhooks/twilio/status", url.Values{"callId": {callID}})
}

func (cb Callbacks) Conference(conference, role string) string {
	return cb.url("/webhooks/twilio/conference", url.Values{"conference": {conference}, "role": {role}})
}

func (cb Callbacks) Transcription(callID string) string {
	return cb.url("/webhooks/twilio/transcription", url.Values{"callId": {callID}})
}

// Media is the WebSocket URL for the media stream. Stream URLs cannot carry a
// query string, so the call id travels as a <Parameter>.
func (cb Callbacks) Media() string {
	base := strings.TrimRight(cb.Base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/webhooks/twilio/media"
}
