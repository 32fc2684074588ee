package httpapi

import (
	"context"
	"errors"
	"net/http"

	"holdline/internal/audit"
	"holdline/internal/auth"
	"holdline/internal/broadcast"
	"holdline/internal/calls"
	"holdline/internal/ingest"
	"holdline/internal/notify"
	"holdline/internal/reporting"
	"holdline/internal/telephony"
	"holdline/pkg/logger"
	"holdline/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Calls    *calls.Registry
	Events   telephony.EventHandler
	Provider telephony.Provider
	Streamer *broadcast.Streamer
	Reports  *reporting.Service
	Prefs    notify.PreferenceStore
	Audit    *audit.Service
	Voice    telephony.VoiceTokenConfig

	// Optional.
	Slots    SlotLimiter
	Listened StreamListener
}

// SlotLimiter caps concurrent calls per user. utils.CallSlots implements it.
type SlotLimiter interface {
	Acquire(ctx context.Context, userID string) error
	Release(ctx context.Context, userID string) error
}

// StreamListener counts connected status stream clients.
type StreamListener interface {
	StatusStreamOpened()
	StatusStreamClosed()
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		abort(c, http.StatusNotFound, "call not found")
	case errors.Is(err, calls.ErrInvalidPhone):
		abort(c, http.StatusBadRequest, "invalid phone number")
	case errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, notify.ErrInvalidPreferences):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, calls.ErrIllegalTransition):
		abort(c, http.StatusConflict, err.Error())
	case errors.Is(err, utils.ErrSlotsExhausted):
		abort(c, http.StatusTooManyRequests, "too many active calls")
	case errors.Is(err, ingest.ErrControlFailed):
		abort(c, http.StatusBadGateway, "provider control failed")
	case errors.Is(err, telephony.ErrNotConfigured):
		abort(c, http.StatusServiceUnavailable, "telephony not configured")
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		abort(c, http.StatusInternalServerError, "internal error")
	}
}

func userID(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		abort(c, http.StatusUnauthorized, "user_id required")
		return "", false
	}
	return uid, true
}

// ownedCall loads a call and hides other users' calls behind 404.
func (h Handlers) ownedCall(c *gin.Context) (calls.Call, bool) {
	uid, ok := userID(c)
	if !ok {
		return calls.Call{}, false
	}
	call, err := h.Calls.Get(c.Param("call_id"))
	if err == nil && call.UserID != uid {
		err = calls.ErrNotFound
	}
	if err != nil {
		writeError(c, err)
		return calls.Call{}, false
	}
	return call, true
}
