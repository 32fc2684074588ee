package reporting

import "time"

// TimeRange filters on call start. A zero bound is open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// HoldSummaryRequest requests one user's hold statistics.
type HoldSummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

type HoldSummary struct {
	UserID string `json:"user_id"`

	TotalCalls    int `json:"total_calls"`
	ActiveCalls   int `json:"active_calls"`
	HumansReached int `json:"humans_reached"`
	EndedCalls    int `json:"ended_calls"`
	FailedCalls   int `json:"failed_calls"`

	// Hold figures cover calls that reached a human.
	TotalHoldSeconds   int `json:"total_hold_seconds"`
	AverageHoldSeconds int `json:"average_hold_seconds"`
	LongestHoldSeconds int `json:"longest_hold_seconds"`

	Companies []CompanyStats `json:"companies"`
}

// CompanyStats breaks the summary down by company, most called first.
type CompanyStats struct {
	CompanyName        string `json:"company_name"`
	Calls              int    `json:"calls"`
	HumansReached      int    `json:"humans_reached"`
	AverageHoldSeconds int    `json:"average_hold_seconds"`
}
