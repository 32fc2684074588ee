package audit

import "time"

// Event is an immutable, append-only audit record of one call mutation.
//
// Invariants:
// - Events are never updated or deleted.
// - call_id is always set.
// - Recording is best-effort; the call state machine never waits on it.
type Event struct {
	ID     string    `json:"id" db:"id"`
	CallID string    `json:"call_id" db:"call_id"`
	UserID string    `json:"user_id,omitempty" db:"user_id"`
	Type   EventType `json:"type" db:"type"`

	// Transition events.
	FromStatus string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string `json:"to_status,omitempty" db:"to_status"`

	// IVR step events.
	Input  string `json:"input,omitempty" db:"input"`
	Prompt string `json:"prompt,omitempty" db:"prompt"`

	Message   string    `json:"message,omitempty" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTransition EventType = "call_transition"
	EventTypeIVRStep    EventType = "ivr_step"
)
