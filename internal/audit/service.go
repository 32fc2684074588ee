package audit

import (
	"context"
	"errors"
	"time"

	"holdline/internal/calls"
	"holdline/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByCall(ctx context.Context, callID string) ([]Event, error)
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records call mutations. As a calls.Observer it only enqueues; a
// single writer goroutine started by Run drains the queue. When the queue is
// full, events are dropped and logged.
type Service struct {
	repo  Repository
	clock func() time.Time
	queue chan Event
}

func NewService(repo Repository, buffer int) *Service {
	if buffer <= 0 {
		buffer = 256
	}
	return &Service{repo: repo, clock: time.Now, queue: make(chan Event, buffer)}
}

// Append validates and writes one event synchronously.
func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) ListByCall(ctx context.Context, callID string) ([]Event, error) {
	return s.repo.ListByCall(ctx, callID)
}

// Run writes queued events until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	log := logger.From(ctx)
	write := func(e Event) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Append(wctx, e); err != nil {
			log.Warn("audit write failed", "call_id", e.CallID, "type", e.Type, "err", err)
		}
	}
	for {
		select {
		case e := <-s.queue:
			write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-s.queue:
					write(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) enqueue(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	select {
	case s.queue <- e:
	default:
		logger.ForCall(ctx, e.CallID).Warn("audit queue full, event dropped", "type", e.Type)
	}
}

// TransitionApplied implements calls.Observer.
func (s *Service) TransitionApplied(ctx context.Context, change calls.Change, call calls.Call) {
	s.enqueue(ctx, Event{
		CallID:     call.ID,
		UserID:     call.UserID,
		Type:       EventTypeTransition,
		FromStatus: string(change.From),
		ToStatus:   string(change.To),
		CreatedAt:  change.At,
	})
}

// IVRStepAppended implements calls.Observer.
func (s *Service) IVRStepAppended(ctx context.Context, callID string, step calls.IVRStep) {
	s.enqueue(ctx, Event{
		CallID:    callID,
		Type:      EventTypeIVRStep,
		Input:     step.Input,
		Prompt:    step.Prompt,
		CreatedAt: step.Timestamp,
	})
}
