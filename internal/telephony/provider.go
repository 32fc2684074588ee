package telephony

import (
	"context"
	"errors"
)

// Provider is the call-control surface used by the rest of the service.
//
// Rules:
// - No provider SDK calls outside this package.
// - Request/response types stay provider-agnostic.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// PlaceCall dials the company and bridges it into the call's conference.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)

	Unmute(ctx context.Context, conferenceSID, participantSID string) error
	EndConference(ctx context.Context, conferenceSID string) error
	Hangup(ctx context.Context, callSID string) error

	SendSMS(ctx context.Context, to, body string) error
}

var (
	// ErrNotConnected means the provider identifiers needed for a control are not known yet.
	ErrNotConnected  = errors.New("telephony: call leg not connected")
	ErrNotConfigured = errors.New("telephony: provider not configured")
)

// PlaceCallRequest describes the outbound leg to the company.
type PlaceCallRequest struct {
	CallID         string `json:"call_id"`
	To             string `json:"to"`
	ConferenceName string `json:"conference_name"`
}

type PlaceCallResult struct {
	ProviderCallSID string `json:"provider_call_sid"`
}
