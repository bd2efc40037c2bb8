package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/presenze/internal/model"
)

const notificationColumns = `id, tag, title, body, icon, badge, url, require_interaction, received_at, clicked_at`

// NotificationStore is the inbox of displayed notifications.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Put stores n. A non-empty tag replaces the notification previously shown
// with the same tag.
func (s *NotificationStore) Put(n *model.Notification) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin put notification: %w", err)
	}
	defer tx.Rollback()

	if n.Tag != "" {
		if _, err := tx.Exec(`DELETE FROM notifications WHERE tag = ?`, n.Tag); err != nil {
			return fmt.Errorf("replace tagged notification: %w", err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Tag, n.Title, n.Body, n.Icon, n.Badge, n.URL, n.RequireInteraction, n.ReceivedAt.UTC(), n.ClickedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return tx.Commit()
}

func (s *NotificationStore) Get(id string) (*model.Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// List returns the newest notifications first.
func (s *NotificationStore) List(limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+notificationColumns+` FROM notifications ORDER BY received_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkClicked records the first click. Later clicks keep the original time.
func (s *NotificationStore) MarkClicked(id string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE notifications SET clicked_at = COALESCE(clicked_at, ?) WHERE id = ?`, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark notification clicked: %w", err)
	}
	return nil
}

// DeleteBefore prunes notifications received before t.
func (s *NotificationStore) DeleteBefore(t time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM notifications WHERE received_at < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*model.Notification, error) {
	var (
		n         model.Notification
		clickedAt sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.Tag, &n.Title, &n.Body, &n.Icon, &n.Badge, &n.URL, &n.RequireInteraction, &n.ReceivedAt, &clickedAt); err != nil {
		return nil, err
	}
	if clickedAt.Valid {
		t := clickedAt.Time
		n.ClickedAt = &t
	}
	return &n, nil
}
