package httpapi

import (
	"net/http"
	"time"

	"holdline/internal/notify"
	"holdline/internal/reporting"
	"holdline/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Summary returns the caller's hold statistics. Optional from/to are RFC 3339.
func (h Handlers) Summary(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var rng reporting.TimeRange
	for _, q := range []struct {
		key string
		dst *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := c.Query(q.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			abort(c, http.StatusBadRequest, q.key+" must be RFC 3339")
			return
		}
		*q.dst = t
	}

	out, err := h.Reports.HoldSummary(c.Request.Context(), reporting.HoldSummaryRequest{UserID: uid, Range: rng})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetPreferences(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	p, err := h.Prefs.Get(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) PutPreferences(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var p notify.Preferences
	if err := c.ShouldBindJSON(&p); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.Prefs.Put(c.Request.Context(), uid, p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// VoiceToken lets the browser join its conference leg.
func (h Handlers) VoiceToken(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	tok, err := telephony.IssueVoiceToken(h.Voice, uid, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}
