package telephony

import (
	"context"
	"net/http"

	"holdline/internal/ingest"
	"holdline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// EventHandler is implemented by ingest.Service.
type EventHandler interface {
	Handle(ctx context.Context, ev ingest.Event) (ingest.Outcome, error)
}

// WebhookHandler converts Twilio callbacks to ingestion events and writes
// the acknowledgment.
//
// Every callback is acknowledged with 200, including dropped and unparseable
// ones, so Twilio does not retry.
type WebhookHandler struct {
	Events    EventHandler
	Callbacks Callbacks
}

func (h WebhookHandler) Status(c *gin.Context) {
	ev, err := ParseStatusCallback(c.Request)
	if err != nil {
		h.ackDropped(c, "status", err)
		return
	}
	h.dispatch(c, ev)
}

func (h WebhookHandler) Conference(c *gin.Context) {
	ev, err := ParseConferenceCallback(c.Request)
	if err != nil {
		h.ackDropped(c, "conference", err)
		return
	}
	h.dispatch(c, ev)
}

func (h WebhookHandler) Transcription(c *gin.Context) {
	ev, ok, err := ParseTranscriptionCallback(c.Request)
	if err != nil {
		h.ackDropped(c, "transcription", err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	h.dispatch(c, ev)
}

// Voice returns conference TwiML for a leg. The browser voice SDK sends its
// parameters in the form body, provider-dialed legs in the query string.
func (h WebhookHandler) Voice(c *gin.Context) {
	log := logger.FromGin(c)
	param := func(k string) string {
		if v := c.Query(k); v != "" {
			return v
		}
		return c.PostForm(k)
	}

	var (
		out string
		err error
	)
	switch param("action") {
	case ActionJoinConference:
		out, err = RenderConferenceLeg(h.Callbacks, Leg{
			CallID:     param("callId"),
			Conference: param("conference"),
			Role:       ingest.LegRole(param("role")),
		})
	case ActionConnectUser:
		out, err = RenderConferenceLeg(h.Callbacks, Leg{Conference: param("conference"), Role: ingest.RoleUser})
	default:
		out, err = RenderGreeting()
	}
	if err != nil {
		log.Warn("voice twiml failed", "err", err)
		out = RenderFailure()
	}

	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, out)
}

func (h WebhookHandler) dispatch(c *gin.Context, ev ingest.Event) {
	out, err := h.Events.Handle(c.Request.Context(), ev)
	if err != nil {
		logger.FromGin(c).Error("webhook event failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "applied": out.Applied})
}

func (h WebhookHandler) ackDropped(c *gin.Context, kind string, err error) {
	logger.FromGin(c).Warn("webhook payload dropped", "kind", kind, "err", err)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
