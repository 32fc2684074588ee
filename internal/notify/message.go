package notify

import (
	"fmt"
	"time"

	"holdline/internal/calls"
)

// Message is the channel-neutral content of a human-detected alert.
type Message struct {
	CallID string `json:"call_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// HoldMinutes is the whole minutes between call start and human detection.
func HoldMinutes(c calls.Call) int {
	if c.HumanDetectedAt == nil {
		return 0
	}
	return int(c.HumanDetectedAt.Sub(c.StartedAt) / time.Minute)
}

func BuildMessage(c calls.Call) Message {
	company := c.CompanyName
	if company == "" || company == "Unknown" {
		company = "support"
	}
	return Message{
		CallID: c.ID,
		Title:  "A human picked up",
		Body: fmt.Sprintf("Human detected on your %s call! After %dmin on hold. Open the app now to speak with them.",
			company, HoldMinutes(c)),
	}
}
