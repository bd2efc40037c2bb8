package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/presenze/internal/model"
	"github.com/dukerupert/presenze/internal/notify"
	"github.com/dukerupert/presenze/internal/push"
)

// maxPushBody bounds a delivery: 4096 byte record plus header.
const maxPushBody = 8 << 10

// Receiver authenticates and decrypts push deliveries.
type Receiver interface {
	Receive(d push.Delivery) ([]byte, error)
}

// Notifier displays notifications and routes clicks.
type Notifier interface {
	Display(ctx context.Context, raw []byte) (*model.Notification, error)
	Click(ctx context.Context, id string) (notify.ClickResult, error)
	Inbox(ctx context.Context, limit int) ([]model.Notification, error)
}

type NotificationHandler struct {
	receiver Receiver
	notifier Notifier
	logger   *slog.Logger
}

func NewNotificationHandler(receiver Receiver, notifier Notifier, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{receiver: receiver, notifier: notifier, logger: logger}
}

// Receive handles POST /push/receive/{id}, called by the push service.
func (h *NotificationHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBody))
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	plain, err := h.receiver.Receive(push.Delivery{
		SubscriptionID:  r.PathValue("id"),
		Authorization:   r.Header.Get("Authorization"),
		ContentEncoding: r.Header.Get("Content-Encoding"),
		Body:            body,
	})
	switch {
	case err == nil:
	case errors.Is(err, push.ErrUnknownSubscription):
		// Gone tells the push service to drop the subscription.
		w.WriteHeader(http.StatusGone)
		return
	case errors.Is(err, push.ErrUnauthorized):
		h.logger.Warn("push delivery rejected", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	case errors.Is(err, push.ErrDecrypt):
		h.logger.Warn("push delivery undecryptable", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	default:
		h.logger.Error("push delivery", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if _, err := h.notifier.Display(r.Context(), plain); err != nil {
		h.logger.Error("display notification", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// List handles GET /api/notifications?limit=N
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	list, err := h.notifier.Inbox(r.Context(), limit)
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Open handles GET /notifications/{id}/open. A window already showing the
// target is focused (204); otherwise the caller is redirected to it.
func (h *NotificationHandler) Open(w http.ResponseWriter, r *http.Request) {
	res, err := h.notifier.Click(r.Context(), r.PathValue("id"))
	if errors.Is(err, notify.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("notification click", "error", err)
		http.Error(w, "notification click failed", http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, res)
		return
	}
	if res.Action == notify.ClickFocused {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, res.URL, http.StatusSeeOther)
}
