package telephony

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"holdline/internal/detection"
	"holdline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// AudioSink receives decoded 8 kHz PCM per call.
type AudioSink interface {
	Push(callID string, pcm []int16)
	Forget(callID string)
}

// CallLookup reports whether a call is still accepting audio.
type CallLookup interface {
	Active(callID string) bool
}

// StreamRecorder observes media stream lifecycle, typically for metrics.
type StreamRecorder interface {
	MediaStreamOpened()
	MediaStreamClosed()
}

type mediaMessage struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid"`
	Start     *mediaStart `json:"start,omitempty"`
	Media     *mediaChunk `json:"media,omitempty"`
}

type mediaStart struct {
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
	MediaFormat      struct {
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sampleRate"`
	} `json:"mediaFormat"`
}

type mediaChunk struct {
	Track   string `json:"track"`
	Payload string `json:"payload"`
}

// MediaStreamHandler accepts Twilio Media Streams and feeds the audio window buffer.
// Streams for unknown or terminal calls are closed, and the call's audio is
// forgotten when its stream ends.
type MediaStreamHandler struct {
	Sink     AudioSink
	Calls    CallLookup
	Recorder StreamRecorder
	upgrader websocket.Upgrader
}

func NewMediaStreamHandler(sink AudioSink, lookup CallLookup) *MediaStreamHandler {
	return &MediaStreamHandler{
		Sink:  sink,
		Calls: lookup,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// Twilio does not send an Origin header; signature middleware guards the route.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *MediaStreamHandler) Serve(c *gin.Context) {
	log := logger.FromGin(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("media stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	if h.Recorder != nil {
		h.Recorder.MediaStreamOpened()
		defer h.Recorder.MediaStreamClosed()
	}

	conn.SetReadLimit(1 << 20)
	var callID string
	frames := 0
	defer func() {
		if callID != "" {
			h.Sink.Forget(callID)
		}
	}()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("media stream read failed", "call_id", callID, "err", err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg mediaMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("media stream message dropped", "err", err)
			continue
		}
		switch msg.Event {
		case "start":
			if msg.Start != nil {
				id := msg.Start.CustomParameters["callId"]
				if !h.active(id) {
					log.Info("media stream for inactive call closed", "call_id", id, "stream_sid", msg.StreamSid)
					return
				}
				callID = id
				log = log.With("call_id", callID)
				log.Info("media stream started", "stream_sid", msg.StreamSid, "encoding", msg.Start.MediaFormat.Encoding)
			}
		case "media":
			if callID == "" || msg.Media == nil {
				continue
			}
			if !h.active(callID) {
				log.Info("media stream closed after call ended", "frames", frames)
				return
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				continue
			}
			h.Sink.Push(callID, detection.DecodeMulaw(payload))
			frames++
		case "stop":
			log.Info("media stream stopped", "frames", frames)
			return
		}
	}
}

func (h *MediaStreamHandler) active(callID string) bool {
	if callID == "" {
		return false
	}
	return h.Calls == nil || h.Calls.Active(callID)
}
