package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"holdline/internal/calls"
	"holdline/internal/detection"
	"holdline/internal/speech"
	"holdline/pkg/logger"
)

// CallControl is the provider side of manual and automatic controls.
type CallControl interface {
	Unmute(ctx context.Context, conferenceSID, participantSID string) error
	EndConference(ctx context.Context, conferenceSID string) error
	Hangup(ctx context.Context, callSID string) error
}

// Notifier is fired once when a call first reaches human.
type Notifier interface {
	Fire(ctx context.Context, call calls.Call) bool
}

// Recorder observes ingestion outcomes, typically for metrics.
type Recorder interface {
	EventDropped(reason string)
	HumanDetected(source string)
}

// Drop reasons reported in Outcome.Dropped.
const (
	DropUnknownCall       = "unknown_call"
	DropUnresolved        = "unresolved_conference"
	DropUnmappedStatus    = "unmapped_status"
	DropIllegalTransition = "illegal_transition"
)

// Outcome describes what one event did. Dropped events still ack success upstream.
type Outcome struct {
	CallID  string             `json:"call_id,omitempty"`
	Status  calls.Status       `json:"status,omitempty"`
	Applied bool               `json:"applied"`
	Dropped string             `json:"dropped,omitempty"`
	Verdict *detection.Verdict `json:"verdict,omitempty"`
	// Evaluating is set when a speech onset started a background classification.
	Evaluating bool `json:"evaluating,omitempty"`
}

type Options struct {
	Threshold  float64
	AutoUnmute bool
	// ControlTimeout bounds provider calls made off the request path.
	ControlTimeout time.Duration
}

// Service normalizes provider and user events into registry mutations.
type Service struct {
	registry *calls.Registry
	tracker  *speech.Tracker
	pipeline *speech.Pipeline
	notifier Notifier
	control  CallControl
	recorder Recorder
	opts     Options
	now      func() time.Time

	wg sync.WaitGroup

	mu         sync.Mutex
	evaluating map[string]struct{}
}

func NewService(registry *calls.Registry, tracker *speech.Tracker, pipeline *speech.Pipeline, notifier Notifier, control CallControl, opts Options) *Service {
	if opts.Threshold <= 0 {
		opts.Threshold = detection.HumanThreshold
	}
	if opts.ControlTimeout <= 0 {
		opts.ControlTimeout = 10 * time.Second
	}
	return &Service{
		registry: registry,
		tracker:  tracker,
		pipeline: pipeline,
		notifier: notifier,
		control:  control,
		opts:       opts,
		now:        time.Now,
		evaluating: make(map[string]struct{}),
	}
}

func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// Handle applies one event. Provider events that cannot be applied are dropped
// with a nil error; only ManualEvent failures and unknown event types are errors.
func (s *Service) Handle(ctx context.Context, ev Event) (Outcome, error) {
	switch e := ev.(type) {
	case StatusEvent:
		return s.handleStatus(ctx, e)
	case ConferenceEvent:
		return s.handleConference(ctx, e)
	case SpeechEvent:
		return s.handleSpeech(ctx, e)
	case TranscriptEvent:
		return s.handleTranscript(ctx, e)
	case ManualEvent:
		return s.handleManual(ctx, e)
	default:
		return Outcome{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

// Wait blocks until background classification and unmute work has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// MapStatus maps a provider status token and machine-detection result to a target status.
func MapStatus(token, answeredBy string) (calls.Status, bool) {
	switch token {
	case "initiated", "ringing", "queued":
		return calls.StatusNavigating, true
	case "in-progress", "answered":
		if answeredBy == "human" {
			return calls.StatusHuman, true
		}
		return calls.StatusNavigating, true
	case "completed":
		return calls.StatusEnded, true
	case "busy", "no-answer", "canceled", "failed":
		return calls.StatusFailed, true
	}
	return "", false
}

func (s *Service) handleStatus(ctx context.Context, e StatusEvent) (Outcome, error) {
	log := logger.ForCall(ctx, e.CallID)

	target, ok := MapStatus(e.Token, e.AnsweredBy)
	if !ok {
		log.Info("unmapped provider status dropped", "token", e.Token, "answered_by", e.AnsweredBy)
		return s.drop(e.CallID, DropUnmappedStatus), nil
	}
	side := calls.SideData{ProviderCallSID: e.ProviderCallSID}

	if target == calls.StatusHuman {
		v := detection.ProviderVerdict()
		return s.promoteHuman(ctx, e.CallID, v, side)
	}
	return s.transition(ctx, e.CallID, target, side)
}

func (s *Service) handleConference(ctx context.Context, e ConferenceEvent) (Outcome, error) {
	callID, ok := s.registry.ResolveConference(e.ConferenceName)
	if !ok {
		logger.From(ctx).Info("conference event for unknown conference dropped", "conference", e.ConferenceName, "kind", e.Kind)
		return s.drop("", DropUnresolved), nil
	}
	log := logger.ForCall(ctx, callID)
	side := calls.SideData{ConferenceSID: e.ConferenceSID}

	switch e.Kind {
	case ParticipantJoin:
		if e.Role == RoleUser {
			side.UserLegSID = e.ParticipantSID
			call, err := s.registry.Annotate(callID, side)
			if err != nil {
				return s.drop(callID, DropUnknownCall), nil
			}
			log.Info("user leg joined conference", "participant", e.ParticipantSID)
			return Outcome{CallID: callID, Status: call.Status}, nil
		}
		// A target leg in the conference has been answered even if the
		// ringing/answered callbacks have not arrived yet.
		if call, err := s.registry.Get(callID); err == nil && call.Status == calls.StatusInitiating {
			if _, err := s.transition(ctx, callID, calls.StatusNavigating, side); err != nil {
				return Outcome{}, err
			}
		}
		return s.transition(ctx, callID, calls.StatusHolding, side)
	case ConferenceEnd:
		return s.transition(ctx, callID, calls.StatusEnded, side)
	default:
		log.Debug("conference event", "kind", e.Kind, "participant", e.ParticipantSID)
		call, err := s.registry.Annotate(callID, side)
		if err != nil {
			return s.drop(callID, DropUnknownCall), nil
		}
		return Outcome{CallID: callID, Status: call.Status}, nil
	}
}

func (s *Service) handleSpeech(ctx context.Context, e SpeechEvent) (Outcome, error) {
	callID, ok := s.registry.ResolveConference(e.ConferenceName)
	if !ok {
		logger.From(ctx).Info("speech event for unknown conference dropped", "conference", e.ConferenceName)
		return s.drop("", DropUnresolved), nil
	}
	at := e.At
	if at.IsZero() {
		at = s.now()
	}

	if e.Kind == SpeechStop {
		s.tracker.OnSpeechStop(callID, at)
		return Outcome{CallID: callID}, nil
	}

	call, err := s.registry.Get(callID)
	if err != nil {
		return s.drop(callID, DropUnknownCall), nil
	}
	out := Outcome{CallID: callID, Status: call.Status}
	if call.Status.Terminal() {
		return out, nil
	}

	onset := s.tracker.OnSpeechStart(callID, at)
	if call.Status != calls.StatusHolding || !onset.Triggered {
		return out, nil
	}
	out.Evaluating = s.evaluate(ctx, callID, onset)
	return out, nil
}

// evaluate runs the detection pipeline off the request path, at most once per
// call at a time. It reports whether a new evaluation was started.
func (s *Service) evaluate(ctx context.Context, callID string, onset speech.Onset) bool {
	s.mu.Lock()
	if _, busy := s.evaluating[callID]; busy {
		s.mu.Unlock()
		logger.ForCall(ctx, callID).Debug("classification already running")
		return false
	}
	s.evaluating[callID] = struct{}{}
	s.mu.Unlock()

	base := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.evaluating, callID)
			s.mu.Unlock()
		}()

		res := s.pipeline.Evaluate(base, callID, onset)
		if !res.Conclusive {
			return
		}
		if !res.Verdict.IsHuman(s.opts.Threshold) {
			logger.ForCall(base, callID).Debug("speech classified as hold", "confidence", res.Verdict.Confidence, "reason", res.Verdict.Reason)
			return
		}
		if _, err := s.promoteHuman(base, callID, res.Verdict, calls.SideData{}); err != nil {
			logger.ForCall(base, callID).Error("human promotion failed", "err", err)
		}
	}()
	return true
}

func (s *Service) handleTranscript(ctx context.Context, e TranscriptEvent) (Outcome, error) {
	callID := e.CallID
	if callID == "" {
		id, ok := s.registry.ResolveConference(e.ConferenceName)
		if !ok {
			logger.From(ctx).Info("transcript for unknown conference dropped", "conference", e.ConferenceName)
			return s.drop("", DropUnresolved), nil
		}
		callID = id
	}
	call, err := s.registry.Get(callID)
	if err != nil {
		logger.ForCall(ctx, callID).Info("transcript for unknown call dropped")
		return s.drop(callID, DropUnknownCall), nil
	}
	out := Outcome{CallID: callID, Status: call.Status}
	if !e.Final || e.Text == "" || call.Status != calls.StatusHolding {
		return out, nil
	}

	v := detection.ClassifyTranscript(e.Text)
	if !v.IsHuman(s.opts.Threshold) {
		out.Verdict = &v
		return out, nil
	}
	return s.promoteHuman(ctx, callID, v, calls.SideData{})
}

func (s *Service) handleManual(ctx context.Context, e ManualEvent) (Outcome, error) {
	if !e.Action.Valid() {
		return Outcome{}, fmt.Errorf("%w: action %q", calls.ErrInvalidArgument, e.Action)
	}
	call, err := s.registry.Get(e.CallID)
	if err != nil {
		return Outcome{}, err
	}
	log := logger.ForCall(ctx, e.CallID)

	switch e.Action {
	case ActionUnmute:
		if call.Status == calls.StatusLive || call.Status.Terminal() {
			return Outcome{CallID: call.ID, Status: call.Status}, nil
		}
		if !calls.CanTransition(call.Status, calls.StatusLive) {
			return Outcome{}, fmt.Errorf("%w: %s -> %s", calls.ErrIllegalTransition, call.Status, calls.StatusLive)
		}
		if err := s.control.Unmute(ctx, call.ConferenceSID, call.UserLegSID); err != nil {
			log.Error("unmute failed", "err", err)
			return Outcome{}, fmt.Errorf("%w: %v", ErrControlFailed, err)
		}
		return s.transitionStrict(ctx, call.ID, calls.StatusLive)
	default:
		if call.Status.Terminal() {
			return Outcome{CallID: call.ID, Status: call.Status}, nil
		}
		if err := s.endAtProvider(ctx, call); err != nil {
			// The user asked to stop; local state follows regardless.
			log.Warn("provider end failed", "err", err)
		}
		return s.transitionStrict(ctx, call.ID, calls.StatusEnded)
	}
}

func (s *Service) endAtProvider(ctx context.Context, call calls.Call) error {
	switch {
	case call.ConferenceSID != "":
		return s.control.EndConference(ctx, call.ConferenceSID)
	case call.ProviderCallSID != "":
		return s.control.Hangup(ctx, call.ProviderCallSID)
	}
	return nil
}

// promoteHuman applies the human transition and, on the first such edge,
// fires notifications and the optional automatic unmute.
func (s *Service) promoteHuman(ctx context.Context, callID string, v detection.Verdict, side calls.SideData) (Outcome, error) {
	call, change, err := s.registry.ApplyTransition(ctx, callID, calls.StatusHuman, side)
	out, err := s.outcome(ctx, callID, call, change, err)
	if err != nil || !change.BecameHuman() {
		return out, err
	}
	out.Verdict = &v

	logger.ForCall(ctx, callID).Info("human detected", "source", v.Source, "confidence", v.Confidence, "reason", v.Reason)
	if s.recorder != nil {
		s.recorder.HumanDetected(string(v.Source))
	}
	s.notifier.Fire(ctx, call)
	if s.opts.AutoUnmute {
		s.autoUnmute(ctx, call)
	}
	return out, nil
}

func (s *Service) autoUnmute(ctx context.Context, call calls.Call) {
	base := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(base, s.opts.ControlTimeout)
		defer cancel()

		log := logger.ForCall(ctx, call.ID)
		if err := s.control.Unmute(ctx, call.ConferenceSID, call.UserLegSID); err != nil {
			log.Error("automatic unmute failed", "err", err)
			return
		}
		if _, _, err := s.registry.ApplyTransition(ctx, call.ID, calls.StatusLive, calls.SideData{}); err != nil {
			log.Warn("live transition after unmute failed", "err", err)
		}
	}()
}

func (s *Service) transition(ctx context.Context, callID string, target calls.Status, side calls.SideData) (Outcome, error) {
	call, change, err := s.registry.ApplyTransition(ctx, callID, target, side)
	return s.outcome(ctx, callID, call, change, err)
}

// transitionStrict is transition for user-issued actions, where errors surface.
func (s *Service) transitionStrict(ctx context.Context, callID string, target calls.Status) (Outcome, error) {
	call, change, err := s.registry.ApplyTransition(ctx, callID, target, calls.SideData{})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{CallID: callID, Status: call.Status, Applied: change.Applied}, nil
}

// outcome turns registry errors on provider-driven paths into drops.
func (s *Service) outcome(ctx context.Context, callID string, call calls.Call, change calls.Change, err error) (Outcome, error) {
	switch {
	case err == nil:
		return Outcome{CallID: callID, Status: call.Status, Applied: change.Applied}, nil
	case errors.Is(err, calls.ErrNotFound):
		logger.ForCall(ctx, callID).Info("event for unknown call dropped")
		return s.drop(callID, DropUnknownCall), nil
	case errors.Is(err, calls.ErrIllegalTransition):
		logger.ForCall(ctx, callID).Info("out-of-order event dropped", "err", err)
		out := s.drop(callID, DropIllegalTransition)
		out.Status = call.Status
		return out, nil
	default:
		return Outcome{}, err
	}
}

func (s *Service) drop(callID, reason string) Outcome {
	if s.recorder != nil {
		s.recorder.EventDropped(reason)
	}
	return Outcome{CallID: callID, Dropped: reason}
}
