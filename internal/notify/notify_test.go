package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/presenze/internal/model"
	"github.com/dukerupert/presenze/internal/websocket"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Payload
	}{
		{"empty", "", DefaultPayload()},
		{"malformed", "{not json", DefaultPayload()},
		{"wrong shape", `["a"]`, DefaultPayload()},
		{"no title", `{"body":"x"}`, DefaultPayload()},
		{
			"full",
			`{"title":"Presenze","body":"Mario: Ferie","icon":"/i.png","badge":"/b.png","tag":"att","requireInteraction":true,"data":{"url":"/calendar?month=2024-06"}}`,
			Payload{Title: "Presenze", Body: "Mario: Ferie", Icon: "/i.png", Badge: "/b.png", Tag: "att", RequireInteraction: true, Data: Data{URL: "/calendar?month=2024-06"}},
		},
		{
			"missing url",
			`{"title":"Ciao"}`,
			Payload{Title: "Ciao", Icon: defaultIcon, Badge: defaultBadge, Data: Data{URL: "/"}},
		},
		{
			"foreign url",
			`{"title":"Ciao","data":{"url":"https://evil.example.com"}}`,
			Payload{Title: "Ciao", Icon: defaultIcon, Badge: defaultBadge, Data: Data{URL: "/"}},
		},
		{
			"protocol relative url",
			`{"title":"Ciao","data":{"url":"//evil.example.com/x"}}`,
			Payload{Title: "Ciao", Icon: defaultIcon, Badge: defaultBadge, Data: Data{URL: "/"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePayload([]byte(tt.raw)))
		})
	}
}

type memStore struct {
	mu    sync.Mutex
	items []model.Notification
}

func (m *memStore) Put(n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	for _, it := range m.items {
		if n.Tag == "" || it.Tag != n.Tag {
			kept = append(kept, it)
		}
	}
	m.items = append(kept, *n)
	return nil
}

func (m *memStore) Get(id string) (*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == id {
			cp := it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(limit int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Notification, 0, len(m.items))
	for i := len(m.items) - 1; i >= 0; i-- {
		out = append(out, m.items[i])
	}
	return out, nil
}

func (m *memStore) MarkClicked(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].ClickedAt == nil {
			m.items[i].ClickedAt = &at
		}
	}
	return nil
}

type fakeWindows struct {
	open      map[string]bool
	broadcast []websocket.Message
	focused   []string
}

func (w *fakeWindows) Broadcast(msg websocket.Message) {
	w.broadcast = append(w.broadcast, msg)
}

func (w *fakeWindows) Focus(target string, data any) bool {
	if w.open[target] {
		w.focused = append(w.focused, target)
		return true
	}
	return false
}

func newTestService(open ...string) (*Service, *memStore, *fakeWindows) {
	store := &memStore{}
	windows := &fakeWindows{open: map[string]bool{}}
	for _, u := range open {
		windows.open[u] = true
	}
	return NewService(store, windows, slog.New(slog.NewTextHandler(io.Discard, nil))), store, windows
}

func TestDisplay(t *testing.T) {
	ctx := context.Background()
	svc, _, windows := newTestService()

	n, err := svc.Display(ctx, []byte("garbage"))
	require.NoError(t, err)
	assert.Equal(t, defaultTitle, n.Title)
	assert.Equal(t, "/", n.URL)
	require.Len(t, windows.broadcast, 1)
	assert.Equal(t, websocket.TypeNotification, windows.broadcast[0].Type)
}

func TestDisplaySameTagReplaces(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Display(ctx, []byte(`{"title":"Primo","tag":"daily"}`))
	require.NoError(t, err)
	second, err := svc.Display(ctx, []byte(`{"title":"Secondo","tag":"daily"}`))
	require.NoError(t, err)

	inbox, err := svc.Inbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, second.ID, inbox[0].ID)
}

func TestClickFocusesOpenWindow(t *testing.T) {
	ctx := context.Background()
	svc, store, windows := newTestService("/calendar?month=2024-06")

	n, err := svc.Display(ctx, []byte(`{"title":"x","data":{"url":"/calendar?month=2024-06"}}`))
	require.NoError(t, err)

	res, err := svc.Click(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, ClickResult{Action: ClickFocused, URL: "/calendar?month=2024-06"}, res)
	assert.Equal(t, []string{"/calendar?month=2024-06"}, windows.focused)

	stored, _ := store.Get(n.ID)
	assert.NotNil(t, stored.ClickedAt)
}

func TestClickOpensWhenNoWindowMatches(t *testing.T) {
	ctx := context.Background()
	svc, _, windows := newTestService("/calendar")

	n, err := svc.Display(ctx, []byte(`{"title":"x","data":{"url":"/notifications"}}`))
	require.NoError(t, err)

	res, err := svc.Click(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, ClickResult{Action: ClickOpen, URL: "/notifications"}, res)
	assert.Empty(t, windows.focused)
}

func TestClickUnknown(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Click(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
