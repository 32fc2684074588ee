package telephony

import (
	"context"
	"errors"
	"fmt"

	"holdline/internal/ingest"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioProvider drives calls through the Twilio REST API.
// The SDK has no context support; ctx is only checked before each request.
type TwilioProvider struct {
	client     *twilio.RestClient
	accountSID string
	from       string
	callbacks  Callbacks
}

func NewTwilioProvider(cfg TwilioConfig, callbacks Callbacks) (*TwilioProvider, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrNotConfigured
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioProvider{client: client, accountSID: cfg.AccountSID, from: cfg.FromNumber, callbacks: callbacks}, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.client.Api.FetchAccount(p.accountSID); err != nil {
		return fmt.Errorf("telephony: twilio health: %w", err)
	}
	return nil
}

func (p *TwilioProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if err := ctx.Err(); err != nil {
		return PlaceCallResult{}, err
	}
	if p.from == "" {
		return PlaceCallResult{}, errors.New("telephony: twilio from number not configured")
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(p.from)
	params.SetUrl(p.callbacks.Voice(req.CallID, req.ConferenceName, string(ingest.RoleTarget)))
	params.SetStatusCallback(p.callbacks.Status(req.CallID))
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	// Async AMD posts AnsweredBy to the status callback without delaying the bridge.
	params.SetMachineDetection("Enable")
	params.SetAsyncAmd("true")
	params.SetAsyncAmdStatusCallback(p.callbacks.Status(req.CallID))

	resp, err := p.client.Api.CreateCall(params)
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: twilio create call: %w", err)
	}
	var sid string
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	return PlaceCallResult{ProviderCallSID: sid}, nil
}

func (p *TwilioProvider) Unmute(ctx context.Context, conferenceSID, participantSID string) error {
	if conferenceSID == "" || participantSID == "" {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.UpdateParticipantParams{}
	params.SetMuted(false)
	if _, err := p.client.Api.UpdateParticipant(conferenceSID, participantSID, params); err != nil {
		return fmt.Errorf("telephony: twilio unmute: %w", err)
	}
	return nil
}

func (p *TwilioProvider) EndConference(ctx context.Context, conferenceSID string) error {
	if conferenceSID == "" {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.UpdateConferenceParams{}
	params.SetStatus("completed")
	if _, err := p.client.Api.UpdateConference(conferenceSID, params); err != nil {
		return fmt.Errorf("telephony: twilio end conference: %w", err)
	}
	return nil
}

func (p *TwilioProvider) Hangup(ctx context.Context, callSID string) error {
	if callSID == "" {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := p.client.Api.UpdateCall(callSID, params); err != nil {
		return fmt.Errorf("telephony: twilio hangup: %w", err)
	}
	return nil
}

func (p *TwilioProvider) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.from == "" {
		return errors.New("telephony: twilio from number not configured")
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(p.from)
	params.SetBody(body)
	if _, err := p.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("telephony: twilio sms: %w", err)
	}
	return nil
}
