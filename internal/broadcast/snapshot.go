package broadcast

import (
	"time"

	"holdline/internal/calls"
)

type UserState string
type BotState string
type CompanyState string

const (
	UserMuted UserState = "muted"
	UserLive  UserState = "live"

	BotActive BotState = "active"
	BotIdle   BotState = "idle"

	CompanyRinging CompanyState = "ringing"
	CompanyHold    CompanyState = "hold"
	CompanyHuman   CompanyState = "human"
)

// Snapshot is one status frame pushed to subscribers.
type Snapshot struct {
	CallID         string          `json:"callId"`
	Status         calls.Status    `json:"status"`
	UserState      UserState       `json:"userState"`
	BotState       BotState        `json:"botState"`
	CompanyState   CompanyState    `json:"companyState"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
	IVRPath        []calls.IVRStep `json:"ivrPath"`
}

// Project derives a snapshot from the call record.
//
// Terminal calls keep the last user/company state they reached: a call that
// had a human stays live/human, anything else stays muted with the company
// state implied by how far it got.
func Project(c calls.Call, now time.Time) Snapshot {
	if c.EndedAt != nil && c.EndedAt.Before(now) {
		now = *c.EndedAt
	}
	s := Snapshot{
		CallID:         c.ID,
		Status:         c.Status,
		UserState:      UserMuted,
		BotState:       BotActive,
		CompanyState:   CompanyRinging,
		ElapsedSeconds: int(c.Elapsed(now) / time.Second),
		IVRPath:        append([]calls.IVRStep{}, c.IVRPath...),
	}

	switch c.Status {
	case calls.StatusInitiating:
	case calls.StatusNavigating, calls.StatusHolding:
		s.CompanyState = CompanyHold
	case calls.StatusHuman, calls.StatusLive:
		s.UserState = UserLive
		s.CompanyState = CompanyHuman
		s.BotState = BotIdle
	case calls.StatusEnded, calls.StatusFailed:
		s.BotState = BotIdle
		switch {
		case c.HumanDetectedAt != nil:
			s.UserState = UserLive
			s.CompanyState = CompanyHuman
		case c.ConferenceSID != "" || len(c.IVRPath) > 0:
			s.CompanyState = CompanyHold
		}
	}
	return s
}
