package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"

	"holdline/internal/ingest"
)

// Voice webhook actions.
const (
	ActionJoinConference = "join-conference"
	ActionConnectUser    = "connect-user"
)

// conferenceEvents are the conference callbacks both legs subscribe to.
// "speaker" produces participant-speech-start/stop.
const conferenceEvents = "start end join leave mute hold speaker"

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlStart struct {
	XMLName       xml.Name            `xml:"Start"`
	Stream        *twimlStream        `xml:"Stream,omitempty"`
	Transcription *twimlTranscription `xml:"Transcription,omitempty"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Track      string           `xml:"track,attr,omitempty"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlTranscription struct {
	StatusCallbackURL string `xml:"statusCallbackUrl,attr"`
	Track             string `xml:"track,attr,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlDial struct {
	XMLName    xml.Name        `xml:"Dial"`
	Conference twimlConference `xml:"Conference"`
}

type twimlConference struct {
	Name                   string  `xml:",chardata"`
	Muted                  bool    `xml:"muted,attr"`
	Beep                   bool    `xml:"beep,attr"`
	StartConferenceOnEnter bool    `xml:"startConferenceOnEnter,attr"`
	EndConferenceOnExit    bool    `xml:"endConferenceOnExit,attr"`
	WaitURL                *string `xml:"waitUrl,attr,omitempty"`
	StatusCallback         string  `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent    string  `xml:"statusCallbackEvent,attr,omitempty"`
}

// Leg identifies which side of the bridge a voice webhook is for.
type Leg struct {
	CallID     string
	Conference string
	Role       ingest.LegRole
}

// RenderConferenceLeg returns the TwiML that puts a leg into the call's conference.
//
// The company (target) leg starts the conference, ends it on exit, and streams
// its inbound audio for classification. The user leg joins muted and silent.
func RenderConferenceLeg(cb Callbacks, leg Leg) (string, error) {
	if strings.TrimSpace(leg.Conference) == "" {
		return "", errors.New("telephony: conference name required")
	}
	silence := ""

	var r twimlResponse
	switch leg.Role {
	case ingest.RoleTarget:
		if leg.CallID != "" {
			r.Verbs = append(r.Verbs, twimlStart{
				Stream: &twimlStream{
					URL:        cb.Media(),
					Track:      "inbound_track",
					Parameters: []twimlParameter{{Name: "callId", Value: leg.CallID}},
				},
			}, twimlStart{
				Transcription: &twimlTranscription{
					StatusCallbackURL: cb.Transcription(leg.CallID),
					Track:             "inbound_track",
				},
			})
		}
		r.Verbs = append(r.Verbs, twimlDial{Conference: twimlConference{
			Name:                   leg.Conference,
			StartConferenceOnEnter: true,
			EndConferenceOnExit:    true,
			StatusCallback:         cb.Conference(leg.Conference, string(ingest.RoleTarget)),
			StatusCallbackEvent:    conferenceEvents,
		}})
	case ingest.RoleUser:
		r.Verbs = append(r.Verbs, twimlDial{Conference: twimlConference{
			Name:                leg.Conference,
			Muted:               true,
			WaitURL:             &silence,
			StatusCallback:      cb.Conference(leg.Conference, string(ingest.RoleUser)),
			StatusCallbackEvent: conferenceEvents,
		}})
	default:
		return "", errors.New("telephony: unknown leg role")
	}
	return encodeTwiML(r)
}

// RenderGreeting is served when the voice webhook is hit without an action.
func RenderGreeting() (string, error) {
	return encodeTwiML(twimlResponse{Verbs: []any{
		twimlSay{Text: "Welcome. Please wait while we connect your call."},
		twimlPause{Length: 1},
	}})
}

// RenderFailure apologizes and hangs up.
func RenderFailure() string {
	out, err := encodeTwiML(twimlResponse{Verbs: []any{
		twimlSay{Text: "An error occurred. Please try again later."},
		twimlHangup{},
	}})
	if err != nil {
		return xml.Header + "<Response><Hangup></Hangup></Response>"
	}
	return out
}

func encodeTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
