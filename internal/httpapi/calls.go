package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"holdline/internal/calls"
	"holdline/internal/ingest"
	"holdline/internal/telephony"
	"holdline/pkg/logger"

	"github.com/gin-gonic/gin"
)

type createCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	CompanyName string `json:"company_name"`
	Reason      string `json:"reason"`
}

// CreateCall registers a call and asks the provider to dial the company.
func (h Handlers) CreateCall(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := c.Request.Context()

	// Reject bad numbers before taking a slot.
	if _, err := calls.NormalizePhone(req.PhoneNumber); err != nil {
		writeError(c, err)
		return
	}
	if h.Slots != nil {
		if err := h.Slots.Acquire(ctx, uid); err != nil {
			writeError(c, err)
			return
		}
	}

	call, err := h.Calls.Create(ctx, calls.CreateRequest{
		UserID:      uid,
		PhoneNumber: req.PhoneNumber,
		CompanyName: req.CompanyName,
		Reason:      req.Reason,
	})
	if err != nil {
		if h.Slots != nil {
			_ = h.Slots.Release(context.WithoutCancel(ctx), uid)
		}
		writeError(c, err)
		return
	}

	log := logger.ForCall(ctx, call.ID)
	res, err := h.Provider.PlaceCall(ctx, telephony.PlaceCallRequest{
		CallID:         call.ID,
		To:             call.PhoneNumber,
		ConferenceName: call.ConferenceName,
	})
	if err != nil {
		log.Error("place call failed", "provider", h.Provider.Name(), "err", err)
		// Teardown hooks release the slot.
		if _, _, terr := h.Calls.ApplyTransition(context.WithoutCancel(ctx), call.ID, calls.StatusFailed, calls.SideData{}); terr != nil {
			log.Error("mark failed", "err", terr)
		}
		abort(c, http.StatusBadGateway, "call placement failed")
		return
	}
	if call, err = h.Calls.Annotate(call.ID, calls.SideData{ProviderCallSID: res.ProviderCallSID}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

func (h Handlers) ListCalls(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": h.Calls.ListByUser(uid)})
}

func (h Handlers) GetCall(c *gin.Context) {
	call, ok := h.ownedCall(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, call)
}

type controlRequest struct {
	Action string `json:"action"`
}

// ControlCall applies a manual unmute or end.
func (h Handlers) ControlCall(c *gin.Context) {
	call, ok := h.ownedCall(c)
	if !ok {
		return
	}
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	action := ingest.ManualAction(strings.ToLower(strings.TrimSpace(req.Action)))
	if !action.Valid() {
		abort(c, http.StatusBadRequest, "action must be unmute or end")
		return
	}

	if _, err := h.Events.Handle(c.Request.Context(), ingest.ManualEvent{CallID: call.ID, Action: action}); err != nil {
		writeError(c, err)
		return
	}
	updated, err := h.Calls.Get(call.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type ivrStepRequest struct {
	Input  string `json:"input"`
	Prompt string `json:"prompt"`
}

// AppendIVRStep records a menu input sent on the call.
func (h Handlers) AppendIVRStep(c *gin.Context) {
	call, ok := h.ownedCall(c)
	if !ok {
		return
	}
	var req ivrStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		abort(c, http.StatusBadRequest, "input required")
		return
	}
	updated, err := h.Calls.AppendIVRStep(c.Request.Context(), call.ID, calls.IVRStep{
		Input:     strings.TrimSpace(req.Input),
		Prompt:    strings.TrimSpace(req.Prompt),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, updated)
}

// CallEvents returns the audit trail for one call.
func (h Handlers) CallEvents(c *gin.Context) {
	call, ok := h.ownedCall(c)
	if !ok {
		return
	}
	if h.Audit == nil {
		abort(c, http.StatusServiceUnavailable, "audit not configured")
		return
	}
	events, err := h.Audit.ListByCall(c.Request.Context(), call.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
