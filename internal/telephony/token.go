package telephony

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VoiceTokenConfig holds the API key pair used to mint browser voice tokens.
type VoiceTokenConfig struct {
	AccountSID  string
	APIKey      string
	APISecret   string
	TwiMLAppSID string
	TTL         time.Duration
}

type voiceGrant struct {
	Incoming struct {
		Allow bool `json:"allow"`
	} `json:"incoming"`
	Outgoing struct {
		ApplicationSID string `json:"application_sid,omitempty"`
	} `json:"outgoing"`
}

type accessGrants struct {
	Identity string     `json:"identity"`
	Voice    voiceGrant `json:"voice"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Grants accessGrants `json:"grants"`
}

// VoiceToken is a signed Twilio access token for the browser voice SDK.
type VoiceToken struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueVoiceToken lets the user's browser join its conference leg.
func IssueVoiceToken(cfg VoiceTokenConfig, identity string, now time.Time) (VoiceToken, error) {
	if cfg.AccountSID == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return VoiceToken{}, ErrNotConfigured
	}
	if identity == "" {
		return VoiceToken{}, errors.New("telephony: identity required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	exp := now.Add(ttl)

	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("%s-%d", cfg.APIKey, now.Unix()),
			Issuer:    cfg.APIKey,
			Subject:   cfg.AccountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	claims.Grants.Identity = identity
	claims.Grants.Voice.Incoming.Allow = true
	claims.Grants.Voice.Outgoing.ApplicationSID = cfg.TwiMLAppSID

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["cty"] = "twilio-fpa;v=1"
	signed, err := t.SignedString([]byte(cfg.APISecret))
	if err != nil {
		return VoiceToken{}, err
	}
	return VoiceToken{Token: signed, Identity: identity, ExpiresAt: exp}, nil
}
