package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/presenze/internal/push"
)

// PushControl is the opt-in state machine.
type PushControl interface {
	State() push.State
	Subscribe(ctx context.Context) error
	Unsubscribe(ctx context.Context) error
}

type PushHandler struct {
	control PushControl
	device  *push.Device
	sender  *push.Sender
	logger  *slog.Logger
}

// NewPushHandler creates the handler. sender may be nil, which disables the
// test endpoint.
func NewPushHandler(control PushControl, device *push.Device, sender *push.Sender, logger *slog.Logger) *PushHandler {
	return &PushHandler{control: control, device: device, sender: sender, logger: logger}
}

type pushStateResponse struct {
	State  push.State `json:"state"`
	Busy   bool       `json:"busy"`
	Notice string     `json:"notice,omitempty"`
	Error  string     `json:"error,omitempty"`
}

func (h *PushHandler) stateResponse() pushStateResponse {
	s := h.control.State()
	return pushStateResponse{State: s, Busy: s.Busy()}
}

// State handles GET /api/push/state
func (h *PushHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// Subscribe handles POST /api/push/subscription
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	err := h.control.Subscribe(r.Context())
	h.respond(w, err)
}

// Unsubscribe handles DELETE /api/push/subscription
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	err := h.control.Unsubscribe(r.Context())
	h.respond(w, err)
}

// respond always reports the resulting state. Permission denial is an
// outcome with an explanation, not a failure.
func (h *PushHandler) respond(w http.ResponseWriter, err error) {
	resp := h.stateResponse()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, push.ErrPermissionDenied):
		resp.Notice = msgPushDenied
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, push.ErrInvalidTransition):
		// toggled from a stale view; the state tells the client where it is
		writeJSON(w, http.StatusConflict, resp)
	default:
		status, msg := errorStatus(err, msgPushFailed)
		resp.Error = msg
		writeJSON(w, status, resp)
	}
}

// Test handles POST /api/push/test: a loopback notification to this device.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		writeError(w, http.StatusNotFound, "test sender not configured")
		return
	}
	payload := map[string]any{
		"title": "Presenze",
		"body":  "Notifica di prova",
		"tag":   "presenze-test",
		"data":  map[string]string{"url": "/calendar"},
	}
	err := h.sender.Loopback(r.Context(), h.device, payload)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, push.ErrNotSubscribed), errors.Is(err, push.ErrLoopbackKey):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("loopback push", "error", err)
		writeError(w, http.StatusBadGateway, "failed to send test notification")
	}
}
