package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// PushSubscription is a browser Web Push subscription as returned by PushManager.subscribe.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Preferences are a user's notification channels and destinations.
type Preferences struct {
	SMSEnabled   bool              `json:"sms_enabled"`
	PushEnabled  bool              `json:"push_enabled"`
	EmailEnabled bool              `json:"email_enabled"`
	Phone        string            `json:"phone,omitempty"`
	Email        string            `json:"email,omitempty"`
	Push         *PushSubscription `json:"push_subscription,omitempty"`
}

// DefaultPreferences apply to users who never saved any.
func DefaultPreferences() Preferences {
	return Preferences{SMSEnabled: true, PushEnabled: true}
}

var ErrInvalidPreferences = errors.New("notify: invalid preferences")

// Validate checks that an enabled channel with an explicit destination is well formed.
// A channel enabled without a destination is allowed; it is skipped at dispatch time.
func (p Preferences) Validate() error {
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return ErrInvalidPreferences
	}
	if p.Push != nil && (p.Push.Endpoint == "" || p.Push.P256dh == "" || p.Push.Auth == "") {
		return ErrInvalidPreferences
	}
	return nil
}

type PreferenceStore interface {
	Get(ctx context.Context, userID string) (Preferences, error)
	Put(ctx context.Context, userID string, p Preferences) error
}

// MemoryPreferenceStore keeps preferences for the life of the process.
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]Preferences)}
}

func (s *MemoryPreferenceStore) Get(ctx context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return DefaultPreferences(), nil
}

func (s *MemoryPreferenceStore) Put(ctx context.Context, userID string, p Preferences) error {
	if userID == "" {
		return ErrInvalidPreferences
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = p
	return nil
}
