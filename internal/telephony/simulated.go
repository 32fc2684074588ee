package telephony

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// SimulatedProvider records call-control requests in memory.
// It backs local development and tests where no Twilio account is configured;
// provider events are then posted to the webhooks by hand.
type SimulatedProvider struct {
	mu      sync.Mutex
	seq     atomic.Int64
	placed  []PlaceCallRequest
	unmuted []string
	ended   []string
	hungUp  []string
	sms     []SimulatedSMS
}

type SimulatedSMS struct {
	To   string
	Body string
}

func NewSimulatedProvider() *SimulatedProvider { return &SimulatedProvider{} }

func (p *SimulatedProvider) Name() string { return "simulated" }

func (p *SimulatedProvider) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (p *SimulatedProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if err := ctx.Err(); err != nil {
		return PlaceCallResult{}, err
	}
	p.mu.Lock()
	p.placed = append(p.placed, req)
	p.mu.Unlock()
	return PlaceCallResult{ProviderCallSID: fmt.Sprintf("SIMCA%06d", p.seq.Add(1))}, nil
}

func (p *SimulatedProvider) Unmute(ctx context.Context, conferenceSID, participantSID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unmuted = append(p.unmuted, participantSID)
	return nil
}

func (p *SimulatedProvider) EndConference(ctx context.Context, conferenceSID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, conferenceSID)
	return nil
}

func (p *SimulatedProvider) Hangup(ctx context.Context, callSID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hungUp = append(p.hungUp, callSID)
	return nil
}

func (p *SimulatedProvider) SendSMS(ctx context.Context, to, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sms = append(p.sms, SimulatedSMS{To: to, Body: body})
	return nil
}

// Placed returns the calls dialed so far.
func (p *SimulatedProvider) Placed() []PlaceCallRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PlaceCallRequest(nil), p.placed...)
}

func (p *SimulatedProvider) Unmuted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.unmuted...)
}

func (p *SimulatedProvider) Ended() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(append([]string(nil), p.ended...), p.hungUp...)
}

func (p *SimulatedProvider) Messages() []SimulatedSMS {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SimulatedSMS(nil), p.sms...)
}
