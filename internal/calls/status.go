package calls

// Status is the call lifecycle state.
type Status string

const (
	StatusInitiating Status = "initiating"
	StatusNavigating Status = "navigating"
	StatusHolding    Status = "holding"
	StatusHuman      Status = "human"
	StatusLive       Status = "live"
	StatusEnded      Status = "ended"
	StatusFailed     Status = "failed"
)

// forward lists the non-terminal edges. Every non-terminal status may also
// move to ended or failed.
var forward = map[Status][]Status{
	StatusInitiating: {StatusNavigating, StatusHuman},
	StatusNavigating: {StatusHolding, StatusHuman},
	StatusHolding:    {StatusHuman},
	StatusHuman:      {StatusLive},
	StatusLive:       nil,
}

func (s Status) Valid() bool {
	switch s {
	case StatusInitiating, StatusNavigating, StatusHolding, StatusHuman, StatusLive, StatusEnded, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool { return s == StatusEnded || s == StatusFailed }

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	if from.Terminal() || !from.Valid() || !to.Valid() {
		return false
	}
	if to.Terminal() {
		return true
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}
