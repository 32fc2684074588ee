package calls

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"holdline/pkg/logger"

	"github.com/google/uuid"
)

// Observer is told about every applied mutation, after the call lock is released.
// Implementations must be fast or hand off; they run on the ingestion path.
type Observer interface {
	TransitionApplied(ctx context.Context, change Change, call Call)
	IVRStepAppended(ctx context.Context, callID string, step IVRStep)
}

// TeardownHook runs exactly once per call, when it first reaches a terminal status.
type TeardownHook func(call Call)

// Registry is the authoritative in-memory store of calls and conference mappings.
//
// Concurrency:
// - r.mu guards the maps only.
// - each entry has its own mutex; every mutation of one call holds it.
// - observers and teardown hooks run outside both locks.
type Registry struct {
	mu          sync.RWMutex
	calls       map[string]*entry
	conferences map[string]string

	observers []Observer
	teardown  []TeardownHook

	clock func() time.Time
	newID func() string
}

type entry struct {
	mu   sync.Mutex
	call Call
}

func NewRegistry() *Registry {
	return &Registry{
		calls:       make(map[string]*entry),
		conferences: make(map[string]string),
		clock:       time.Now,
		newID:       uuid.NewString,
	}
}

// Observe registers an observer. Call before serving traffic.
func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// OnTeardown registers a hook for terminal calls. Call before serving traffic.
func (r *Registry) OnTeardown(h TeardownHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardown = append(r.teardown, h)
}

// Create validates the request and inserts a call in StatusInitiating.
// Invalid phone numbers are rejected before anything is stored.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (Call, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return Call{}, fmt.Errorf("%w: user_id required", ErrInvalidArgument)
	}
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return Call{}, err
	}
	company := strings.TrimSpace(req.CompanyName)
	if company == "" {
		company = "Unknown"
	}

	id := r.newID()
	c := Call{
		ID:             id,
		UserID:         req.UserID,
		CompanyName:    company,
		PhoneNumber:    phone,
		Reason:         strings.TrimSpace(req.Reason),
		Status:         StatusInitiating,
		IVRPath:        []IVRStep{},
		StartedAt:      r.clock().UTC(),
		ConferenceName: ConferenceNameFor(id),
	}

	r.mu.Lock()
	r.calls[id] = &entry{call: c}
	r.conferences[c.ConferenceName] = id
	r.mu.Unlock()

	logger.ForCall(ctx, id).Info("call created", "company", company, "conference", c.ConferenceName)
	return c.clone(), nil
}

func (r *Registry) lookup(callID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.calls[callID]
	return e, ok
}

// Get returns a snapshot of the call.
func (r *Registry) Get(callID string) (Call, error) {
	e, ok := r.lookup(callID)
	if !ok {
		return Call{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.call.clone(), nil
}

// ResolveConference maps a conference name to its call id. Mappings are dropped
// once the call is terminal.
func (r *Registry) ResolveConference(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conferences[name]
	return id, ok
}

// ListByUser returns the user's calls, newest first.
func (r *Registry) ListByUser(userID string) []Call {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.calls))
	for _, e := range r.calls {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Call, 0)
	for _, e := range entries {
		e.mu.Lock()
		if e.call.UserID == userID {
			out = append(out, e.call.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Active reports whether the call exists and is not terminal.
func (r *Registry) Active(callID string) bool {
	e, ok := r.lookup(callID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.call.Status.Terminal()
}

// ActiveCount returns the number of non-terminal calls.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.calls))
	for _, e := range r.calls {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if !e.call.Status.Terminal() {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// ApplyTransition moves a call to target.
//
// - unknown id: ErrNotFound
// - terminal call or already in target: no-op, Change.Applied == false
// - off-graph edge: ErrIllegalTransition, no mutation
func (r *Registry) ApplyTransition(ctx context.Context, callID string, target Status, side SideData) (Call, Change, error) {
	change := Change{CallID: callID, To: target}
	if !target.Valid() {
		return Call{}, change, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, target)
	}
	e, ok := r.lookup(callID)
	if !ok {
		return Call{}, change, ErrNotFound
	}

	e.mu.Lock()
	from := e.call.Status
	change.From = from

	if from.Terminal() {
		out := e.call.clone()
		e.mu.Unlock()
		return out, change, nil
	}
	applySide(&e.call, side)
	if from == target {
		out := e.call.clone()
		e.mu.Unlock()
		return out, change, nil
	}
	if !CanTransition(from, target) {
		out := e.call.clone()
		e.mu.Unlock()
		return out, change, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, target)
	}

	now := r.clock().UTC()
	e.call.Status = target
	if target == StatusHuman && e.call.HumanDetectedAt == nil {
		e.call.HumanDetectedAt = &now
	}
	if target.Terminal() && e.call.EndedAt == nil {
		e.call.EndedAt = &now
		if e.call.HumanDetectedAt != nil {
			d := int(e.call.HumanDetectedAt.Sub(e.call.StartedAt) / time.Second)
			e.call.HoldDurationSeconds = &d
		}
	}
	change.Applied = true
	change.At = now
	out := e.call.clone()
	e.mu.Unlock()

	logger.ForCall(ctx, callID).Info("call transition", "from", from, "to", target)

	if target.Terminal() {
		r.tearDown(out)
	}
	for _, o := range r.snapshotObservers() {
		o.TransitionApplied(ctx, change, out)
	}
	return out, change, nil
}

// AppendIVRStep appends unconditionally, including after human detection or
// termination, so the path stays a complete audit trail. Timestamps are
// clamped so the path never goes backwards.
func (r *Registry) AppendIVRStep(ctx context.Context, callID string, step IVRStep) (Call, error) {
	e, ok := r.lookup(callID)
	if !ok {
		return Call{}, ErrNotFound
	}

	e.mu.Lock()
	if step.Timestamp.IsZero() {
		step.Timestamp = r.clock().UTC()
	}
	if n := len(e.call.IVRPath); n > 0 {
		if last := e.call.IVRPath[n-1].Timestamp; step.Timestamp.Before(last) {
			step.Timestamp = last
		}
	}
	e.call.IVRPath = append(e.call.IVRPath, step)
	out := e.call.clone()
	e.mu.Unlock()

	for _, o := range r.snapshotObservers() {
		o.IVRStepAppended(ctx, callID, step)
	}
	return out, nil
}

// Annotate records provider identifiers without changing status.
func (r *Registry) Annotate(callID string, side SideData) (Call, error) {
	e, ok := r.lookup(callID)
	if !ok {
		return Call{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	applySide(&e.call, side)
	return e.call.clone(), nil
}

func applySide(c *Call, side SideData) {
	if c.ProviderCallSID == "" && side.ProviderCallSID != "" {
		c.ProviderCallSID = side.ProviderCallSID
	}
	if c.ConferenceSID == "" && side.ConferenceSID != "" {
		c.ConferenceSID = side.ConferenceSID
	}
	if c.UserLegSID == "" && side.UserLegSID != "" {
		c.UserLegSID = side.UserLegSID
	}
}

func (r *Registry) tearDown(c Call) {
	r.mu.Lock()
	if id, ok := r.conferences[c.ConferenceName]; ok && id == c.ID {
		delete(r.conferences, c.ConferenceName)
	}
	hooks := append([]TeardownHook(nil), r.teardown...)
	r.mu.Unlock()

	for _, h := range hooks {
		h(c)
	}
}

func (r *Registry) snapshotObservers() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Observer(nil), r.observers...)
}

// StartJanitor purges terminal calls once they have been ended longer than retention.
func (r *Registry) StartJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Purge(retention); n > 0 {
					logger.From(ctx).Debug("purged terminal calls", "count", n)
				}
			}
		}
	}()
}

// Purge removes terminal calls ended more than retention ago and returns how many.
func (r *Registry) Purge(retention time.Duration) int {
	cutoff := r.clock().UTC().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.calls {
		e.mu.Lock()
		expired := e.call.Status.Terminal() && e.call.EndedAt != nil && e.call.EndedAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(r.calls, id)
			n++
		}
	}
	return n
}
