package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/presenze/internal/model"
	"github.com/dukerupert/presenze/internal/websocket"
)

// ErrNotFound is returned by Click for an unknown notification.
var ErrNotFound = errors.New("notification not found")

// Store is the notification inbox.
type Store interface {
	Put(n *model.Notification) error
	Get(id string) (*model.Notification, error)
	List(limit int) ([]model.Notification, error)
	MarkClicked(id string, at time.Time) error
}

// Windows are the browser windows currently open on this agent.
type Windows interface {
	Broadcast(msg websocket.Message)
	Focus(target string, data any) bool
}

// ClickAction says how a click was routed.
type ClickAction string

const (
	ClickFocused ClickAction = "focus"
	ClickOpen    ClickAction = "open"
)

// ClickResult is where a click went.
type ClickResult struct {
	Action ClickAction `json:"action"`
	URL    string      `json:"url"`
}

type Service struct {
	store   Store
	windows Windows
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, windows Windows, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		windows: windows,
		logger:  logger,
		now:     time.Now,
	}
}

// Display parses raw, stores the notification and shows it in every open
// window.
func (s *Service) Display(ctx context.Context, raw []byte) (*model.Notification, error) {
	p := ParsePayload(raw)
	n := &model.Notification{
		ID:                 uuid.NewString(),
		Tag:                p.Tag,
		Title:              p.Title,
		Body:               p.Body,
		Icon:               p.Icon,
		Badge:              p.Badge,
		URL:                p.Data.URL,
		RequireInteraction: p.RequireInteraction,
		ReceivedAt:         s.now().UTC(),
	}
	if err := s.store.Put(n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	s.windows.Broadcast(websocket.NewMessage(websocket.TypeNotification, n))
	s.logger.Info("notification displayed", "id", n.ID, "tag", n.Tag, "url", n.URL)
	return n, nil
}

// Click marks the notification clicked, then focuses a window already
// showing its URL path or asks the caller to open the URL.
func (s *Service) Click(ctx context.Context, id string) (ClickResult, error) {
	n, err := s.store.Get(id)
	if err != nil {
		return ClickResult{}, fmt.Errorf("load notification: %w", err)
	}
	if n == nil {
		return ClickResult{}, ErrNotFound
	}
	if err := s.store.MarkClicked(id, s.now()); err != nil {
		return ClickResult{}, fmt.Errorf("mark clicked: %w", err)
	}

	if s.windows.Focus(n.URL, n.ID) {
		s.logger.Debug("notification click focused window", "id", id, "url", n.URL)
		return ClickResult{Action: ClickFocused, URL: n.URL}, nil
	}
	return ClickResult{Action: ClickOpen, URL: n.URL}, nil
}

// Inbox returns recent notifications, newest first.
func (s *Service) Inbox(ctx context.Context, limit int) ([]model.Notification, error) {
	list, err := s.store.List(limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}
