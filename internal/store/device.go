package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/presenze/internal/model"
)

// DeviceStore keeps the single push registration of this device.
type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// Get returns the registration, or nil when the device is not subscribed.
func (s *DeviceStore) Get() (*model.DeviceSubscription, error) {
	var sub model.DeviceSubscription
	err := s.db.QueryRow(
		`SELECT id, endpoint, p256dh_key, auth_key, private_key, application_server_key, created_at
		 FROM device_subscriptions LIMIT 1`,
	).Scan(&sub.ID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.PrivateKey, &sub.ApplicationServerKey, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device subscription: %w", err)
	}
	return &sub, nil
}

// Save stores sub, replacing any previous registration.
func (s *DeviceStore) Save(sub *model.DeviceSubscription) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO device_subscriptions
		 (id, singleton, endpoint, p256dh_key, auth_key, private_key, application_server_key, created_at)
		 VALUES (?, 1, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.PrivateKey, sub.ApplicationServerKey, sub.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save device subscription: %w", err)
	}
	return nil
}

// Delete removes the registration and reports whether there was one.
func (s *DeviceStore) Delete() (bool, error) {
	res, err := s.db.Exec(`DELETE FROM device_subscriptions`)
	if err != nil {
		return false, fmt.Errorf("delete device subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete device subscription: %w", err)
	}
	return n > 0, nil
}
