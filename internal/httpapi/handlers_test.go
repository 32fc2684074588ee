package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"holdline/internal/audit"
	"holdline/internal/auth"
	"holdline/internal/broadcast"
	"holdline/internal/calls"
	"holdline/internal/ingest"
	"holdline/internal/notify"
	"holdline/internal/reporting"
	"holdline/internal/speech"
	"holdline/internal/telephony"
	"holdline/pkg/utils"

	"github.com/gin-gonic/gin"
)

type noopNotifier struct{}

func (noopNotifier) Fire(ctx context.Context, call calls.Call) bool { return true }

type fakeSlots struct {
	full     bool
	acquired int
	released int
}

func (s *fakeSlots) Acquire(ctx context.Context, userID string) error {
	if s.full {
		return utils.ErrSlotsExhausted
	}
	s.acquired++
	return nil
}

func (s *fakeSlots) Release(ctx context.Context, userID string) error {
	s.released++
	return nil
}

type failingProvider struct {
	*telephony.SimulatedProvider
}

func (failingProvider) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	return telephony.PlaceCallResult{}, errors.New("twilio down")
}

type harness struct {
	router   *gin.Engine
	reg      *calls.Registry
	provider *telephony.SimulatedProvider
	h        *Handlers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := calls.NewRegistry()
	provider := telephony.NewSimulatedProvider()
	events := ingest.NewService(reg, speech.NewTracker(0, 0), speech.NewPipeline(nil, nil), noopNotifier{}, provider, ingest.Options{})

	h := &Handlers{
		Calls:    reg,
		Events:   events,
		Provider: provider,
		Streamer: broadcast.NewStreamer(reg, 10*time.Millisecond),
		Reports:  reporting.NewService(reporting.RegistryRepo{Registry: reg}),
		Prefs:    notify.NewMemoryPreferenceStore(),
	}
	return &harness{reg: reg, provider: provider, h: h, router: h.router()}
}

// router mirrors the protected routes with a header-based identity.
func (h *Handlers) router() *gin.Engine {
	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-User"); uid != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), uid))
		}
		c.Next()
	})
	v1.POST("/calls", func(c *gin.Context) { h.CreateCall(c) })
	v1.GET("/calls", func(c *gin.Context) { h.ListCalls(c) })
	v1.GET("/calls/summary", func(c *gin.Context) { h.Summary(c) })
	v1.GET("/calls/:call_id", func(c *gin.Context) { h.GetCall(c) })
	v1.PATCH("/calls/:call_id", func(c *gin.Context) { h.ControlCall(c) })
	v1.POST("/calls/:call_id/ivr-steps", func(c *gin.Context) { h.AppendIVRStep(c) })
	v1.GET("/calls/:call_id/events", func(c *gin.Context) { h.CallEvents(c) })
	v1.GET("/calls/:call_id/stream", func(c *gin.Context) { h.StreamCall(c) })
	v1.GET("/notifications/preferences", func(c *gin.Context) { h.GetPreferences(c) })
	v1.PUT("/notifications/preferences", func(c *gin.Context) { h.PutPreferences(c) })
	v1.POST("/token", func(c *gin.Context) { h.VoiceToken(c) })
	return r
}

func (hs *harness) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (hs *harness) create(t *testing.T, user string) calls.Call {
	t.Helper()
	rec := hs.do(t, http.MethodPost, "/v1/calls", user, gin.H{"phone_number": "1-800-934-6489", "company_name": "Comcast"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	return decode[calls.Call](t, rec)
}

func TestCreateCall(t *testing.T) {
	hs := newHarness(t)
	slots := &fakeSlots{}
	hs.h.Slots = slots

	call := hs.create(t, "u1")
	if call.Status != calls.StatusInitiating || call.PhoneNumber != "+18009346489" {
		t.Fatalf("unexpected call %+v", call)
	}
	if call.ProviderCallSID == "" {
		t.Fatalf("expected provider call sid to be recorded")
	}
	placed := hs.provider.Placed()
	if len(placed) != 1 || placed[0].ConferenceName != call.ConferenceName || placed[0].To != call.PhoneNumber {
		t.Fatalf("unexpected placed calls %+v", placed)
	}
	if slots.acquired != 1 {
		t.Fatalf("expected one slot acquired, got %d", slots.acquired)
	}
}

func TestCreateCall_Rejections(t *testing.T) {
	hs := newHarness(t)

	if rec := hs.do(t, http.MethodPost, "/v1/calls", "u1", gin.H{"phone_number": "555-0123"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short number, got %d", rec.Code)
	}
	if rec := hs.do(t, http.MethodPost, "/v1/calls", "", gin.H{"phone_number": "8009346489"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}

	hs.h.Slots = &fakeSlots{full: true}
	hs.router = hs.h.router()
	if rec := hs.do(t, http.MethodPost, "/v1/calls", "u1", gin.H{"phone_number": "8009346489"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when slots exhausted, got %d", rec.Code)
	}
	if n := len(hs.reg.ListByUser("u1")); n != 0 {
		t.Fatalf("expected no stored calls, got %d", n)
	}
}

func TestCreateCall_ProviderFailureMarksFailed(t *testing.T) {
	hs := newHarness(t)
	hs.h.Provider = failingProvider{telephony.NewSimulatedProvider()}
	hs.router = hs.h.router()

	rec := hs.do(t, http.MethodPost, "/v1/calls", "u1", gin.H{"phone_number": "8009346489"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	list := hs.reg.ListByUser("u1")
	if len(list) != 1 || list[0].Status != calls.StatusFailed {
		t.Fatalf("expected one failed call, got %+v", list)
	}
}

func TestGetAndListCalls_ScopedToUser(t *testing.T) {
	hs := newHarness(t)
	call := hs.create(t, "u1")

	if rec := hs.do(t, http.MethodGet, "/v1/calls/"+call.ID, "u1", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := hs.do(t, http.MethodGet, "/v1/calls/"+call.ID, "u2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's call, got %d", rec.Code)
	}
	if rec := hs.do(t, http.MethodGet, "/v1/calls/nope", "u1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown call, got %d", rec.Code)
	}

	list := decode[struct {
		Calls []calls.Call `json:"calls"`
	}](t, hs.do(t, http.MethodGet, "/v1/calls", "u2", nil))
	if len(list.Calls) != 0 {
		t.Fatalf("expected empty list for u2, got %d", len(list.Calls))
	}
}

func TestControlCall(t *testing.T) {
	hs := newHarness(t)
	call := hs.create(t, "u1")

	if rec := hs.do(t, http.MethodPatch, "/v1/calls/"+call.ID, "u1", gin.H{"action": "dance"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", rec.Code)
	}
	if rec := hs.do(t, http.MethodPatch, "/v1/calls/"+call.ID, "u1", gin.H{"action": "unmute"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 unmuting before a human, got %d", rec.Code)
	}

	if _, _, err := hs.reg.ApplyTransition(context.Background(), call.ID, calls.StatusHuman, calls.SideData{ConferenceSID: "CF1", UserLegSID: "CA-user"}); err != nil {
		t.Fatalf("human: %v", err)
	}
	rec := hs.do(t, http.MethodPatch, "/v1/calls/"+call.ID, "u1", gin.H{"action": "unmute"})
	if rec.Code != http.StatusOK || decode[calls.Call](t, rec).Status != calls.StatusLive {
		t.Fatalf("expected live after unmute, got %d %s", rec.Code, rec.Body.String())
	}
	if got := hs.provider.Unmuted(); len(got) != 1 || got[0] != "CA-user" {
		t.Fatalf("unexpected unmutes %v", got)
	}

	rec = hs.do(t, http.MethodPatch, "/v1/calls/"+call.ID, "u1", gin.H{"action": "END"})
	if rec.Code != http.StatusOK || decode[calls.Call](t, rec).Status != calls.StatusEnded {
		t.Fatalf("expected ended, got %d %s", rec.Code, rec.Body.String())
	}
	if got := hs.provider.Ended(); len(got) != 1 || got[0] != "CF1" {
		t.Fatalf("unexpected conference ends %v", got)
	}
}

func TestAppendIVRStep(t *testing.T) {
	hs := newHarness(t)
	call := hs.create(t, "u1")

	if rec := hs.do(t, http.MethodPost, "/v1/calls/"+call.ID+"/ivr-steps", "u1", gin.H{"input": " "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty input, got %d", rec.Code)
	}
	rec := hs.do(t, http.MethodPost, "/v1/calls/"+call.ID+"/ivr-steps", "u1", gin.H{"input": "2", "prompt": "For billing press 2"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	got := decode[calls.Call](t, rec)
	if len(got.IVRPath) != 1 || got.IVRPath[0].Input != "2" {
		t.Fatalf("unexpected ivr path %+v", got.IVRPath)
	}
}

func TestCallEvents(t *testing.T) {
	hs := newHarness(t)
	call := hs.create(t, "u1")

	if rec := hs.do(t, http.MethodGet, "/v1/calls/"+call.ID+"/events", "u1", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without audit, got %d", rec.Code)
	}

	svc := audit.NewService(audit.NewMemoryRepo(), 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)
	hs.reg.Observe(svc)
	hs.h.Audit = svc
	hs.router = hs.h.router()

	if _, _, err := hs.reg.ApplyTransition(context.Background(), call.ID, calls.StatusNavigating, calls.SideData{}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		out := decode[struct {
			Events []audit.Event `json:"events"`
		}](t, hs.do(t, http.MethodGet, "/v1/calls/"+call.ID+"/events", "u1", nil))
		if len(out.Events) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected one audit event, got %d", len(out.Events))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamCall(t *testing.T) {
	hs := newHarness(t)
	call := hs.create(t, "u1")

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _, _ = hs.reg.ApplyTransition(context.Background(), call.ID, calls.StatusEnded, calls.SideData{})
	}()

	rec := hs.do(t, http.MethodGet, "/v1/calls/"+call.ID+"/stream", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event:status") || !strings.Contains(body, `"status":"ended"`) {
		t.Fatalf("expected terminal status frame, got %q", body)
	}
	if strings.Count(body, "event:status") < 2 {
		t.Fatalf("expected an initial and a terminal frame, got %q", body)
	}
}

func TestSummary(t *testing.T) {
	hs := newHarness(t)
	hs.create(t, "u1")
	hs.create(t, "u1")

	rec := hs.do(t, http.MethodGet, "/v1/calls/summary", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[reporting.HoldSummary](t, rec); got.TotalCalls != 2 || got.ActiveCalls != 2 {
		t.Fatalf("unexpected summary %+v", got)
	}
	if rec := hs.do(t, http.MethodGet, "/v1/calls/summary?from=yesterday", "u1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rec.Code)
	}
}

func TestPreferences(t *testing.T) {
	hs := newHarness(t)

	got := decode[notify.Preferences](t, hs.do(t, http.MethodGet, "/v1/notifications/preferences", "u1", nil))
	if !got.SMSEnabled || !got.PushEnabled || got.EmailEnabled {
		t.Fatalf("unexpected defaults %+v", got)
	}

	if rec := hs.do(t, http.MethodPut, "/v1/notifications/preferences", "u1", gin.H{"email_enabled": true, "email": "nope"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad email, got %d", rec.Code)
	}
	if rec := hs.do(t, http.MethodPut, "/v1/notifications/preferences", "u1", gin.H{"email_enabled": true, "email": "a@b.co"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got = decode[notify.Preferences](t, hs.do(t, http.MethodGet, "/v1/notifications/preferences", "u1", nil))
	if !got.EmailEnabled || got.SMSEnabled || got.Email != "a@b.co" {
		t.Fatalf("unexpected stored prefs %+v", got)
	}
}

func TestVoiceToken(t *testing.T) {
	hs := newHarness(t)
	if rec := hs.do(t, http.MethodPost, "/v1/token", "u1", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without credentials, got %d", rec.Code)
	}

	hs.h.Voice = telephony.VoiceTokenConfig{AccountSID: "AC1", APIKey: "SK1", APISecret: "secret"}
	hs.router = hs.h.router()
	rec := hs.do(t, http.MethodPost, "/v1/token", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if tok := decode[telephony.VoiceToken](t, rec); tok.Token == "" || tok.Identity != "u1" {
		t.Fatalf("unexpected token %+v", tok)
	}
}
