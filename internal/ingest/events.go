package ingest

import (
	"errors"
	"time"
)

var (
	// ErrUnknownEvent is returned for event values outside the closed set below.
	ErrUnknownEvent = errors.New("ingest: unknown event")
	// ErrControlFailed wraps provider failures on manual controls.
	ErrControlFailed = errors.New("ingest: call control failed")
)

// Event is one of StatusEvent, ConferenceEvent, SpeechEvent, ManualEvent, TranscriptEvent.
type Event interface {
	event()
}

// StatusEvent is a provider call-status callback.
type StatusEvent struct {
	CallID          string
	ProviderCallSID string
	// Token is the provider's coarse call status (ringing, in-progress, completed...).
	Token string
	// AnsweredBy is the machine-detection result, if any.
	AnsweredBy string
}

type ConferenceKind string

const (
	ConferenceStart   ConferenceKind = "conference-start"
	ConferenceEnd     ConferenceKind = "conference-end"
	ParticipantJoin   ConferenceKind = "participant-join"
	ParticipantLeave  ConferenceKind = "participant-leave"
	ParticipantMute   ConferenceKind = "participant-mute"
	ParticipantUnmute ConferenceKind = "participant-unmute"
	ParticipantHold   ConferenceKind = "participant-hold"
	ParticipantUnhold ConferenceKind = "participant-unhold"
)

// LegRole tells the two conference participants apart.
type LegRole string

const (
	RoleTarget LegRole = "target"
	RoleUser   LegRole = "user"
)

type ConferenceEvent struct {
	ConferenceName string
	Kind           ConferenceKind
	ConferenceSID  string
	ParticipantSID string
	Role           LegRole
}

type SpeechKind string

const (
	SpeechStart SpeechKind = "start"
	SpeechStop  SpeechKind = "stop"
)

// SpeechEvent is a speech onset or offset observed in the call's conference.
// At should come from time.Now; zero means "now".
type SpeechEvent struct {
	ConferenceName string
	Kind           SpeechKind
	At             time.Time
}

type ManualAction string

const (
	ActionUnmute ManualAction = "unmute"
	ActionEnd    ManualAction = "end"
)

func (a ManualAction) Valid() bool {
	return a == ActionUnmute || a == ActionEnd
}

// ManualEvent is a user-issued control.
type ManualEvent struct {
	CallID string
	Action ManualAction
}

// TranscriptEvent is a provider real-time transcription of the company leg.
// Either CallID or ConferenceName identifies the call.
type TranscriptEvent struct {
	CallID         string
	ConferenceName string
	Text           string
	Final          bool
}

func (StatusEvent) event()     {}
func (ConferenceEvent) event() {}
func (SpeechEvent) event()     {}
func (ManualEvent) event()     {}
func (TranscriptEvent) event() {}
