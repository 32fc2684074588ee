package calls

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("calls: not found")
	ErrInvalidPhone      = errors.New("calls: invalid phone number")
	ErrInvalidArgument   = errors.New("calls: invalid argument")
	ErrIllegalTransition = errors.New("calls: illegal transition")
)

// Call is one outbound hold-navigation attempt.
//
// Invariants:
// - Status only moves along the transition graph; terminal statuses are final.
// - HumanDetectedAt and EndedAt are set at most once.
// - IVRPath is append-only with non-decreasing timestamps.
type Call struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	CompanyName string `json:"company_name"`
	PhoneNumber string `json:"phone_number"`
	Reason      string `json:"reason,omitempty"`

	Status  Status    `json:"status"`
	IVRPath []IVRStep `json:"ivr_path"`

	StartedAt       time.Time  `json:"started_at"`
	HumanDetectedAt *time.Time `json:"human_detected_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`

	// HoldDurationSeconds is derived once, when EndedAt is set.
	HoldDurationSeconds *int `json:"hold_duration_seconds,omitempty"`

	// Provider bookkeeping. Recorded on first sight, never overwritten.
	ConferenceName  string `json:"conference_name"`
	ProviderCallSID string `json:"provider_call_sid,omitempty"`
	ConferenceSID   string `json:"conference_sid,omitempty"`
	UserLegSID      string `json:"user_leg_sid,omitempty"`
}

// IVRStep records one menu input and, when known, the prompt that preceded it.
type IVRStep struct {
	Input     string    `json:"input"`
	Prompt    string    `json:"prompt,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Elapsed returns the time since the call started.
func (c Call) Elapsed(now time.Time) time.Duration {
	if c.StartedAt.IsZero() || now.Before(c.StartedAt) {
		return 0
	}
	return now.Sub(c.StartedAt)
}

// HoldTime is the wait until a human was detected, or until now if none was.
func (c Call) HoldTime(now time.Time) time.Duration {
	if c.HumanDetectedAt != nil {
		return c.HumanDetectedAt.Sub(c.StartedAt)
	}
	return c.Elapsed(now)
}

func (c Call) clone() Call {
	out := c
	out.IVRPath = make([]IVRStep, len(c.IVRPath))
	copy(out.IVRPath, c.IVRPath)
	if c.HumanDetectedAt != nil {
		t := *c.HumanDetectedAt
		out.HumanDetectedAt = &t
	}
	if c.EndedAt != nil {
		t := *c.EndedAt
		out.EndedAt = &t
	}
	if c.HoldDurationSeconds != nil {
		d := *c.HoldDurationSeconds
		out.HoldDurationSeconds = &d
	}
	return out
}

// CreateRequest is the call creation contract.
type CreateRequest struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	CompanyName string `json:"company_name,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// SideData carries provider identifiers observed alongside an event.
type SideData struct {
	ProviderCallSID string
	ConferenceSID   string
	UserLegSID      string
}

// Change describes the outcome of one ApplyTransition call.
type Change struct {
	CallID  string    `json:"call_id"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	Applied bool      `json:"applied"`
	At      time.Time `json:"at"`
}

// BecameHuman reports the one-shot edge that triggers notification dispatch.
func (c Change) BecameHuman() bool {
	return c.Applied && c.To == StatusHuman && c.From != StatusHuman && c.From != StatusLive
}
