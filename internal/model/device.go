package model

import "time"

// DeviceSubscription is this device's own push registration: the endpoint
// the push service delivers to plus the key material needed to decrypt.
type DeviceSubscription struct {
	ID                   string    `json:"id"`
	Endpoint             string    `json:"endpoint"`
	P256dhKey            string    `json:"p256dh_key"`
	AuthKey              string    `json:"auth_key"`
	PrivateKey           string    `json:"-"`
	ApplicationServerKey string    `json:"application_server_key"`
	CreatedAt            time.Time `json:"created_at"`
}

// Notification is a push notification received and shown by this device.
type Notification struct {
	ID                 string     `json:"id"`
	Tag                string     `json:"tag,omitempty"`
	Title              string     `json:"title"`
	Body               string     `json:"body"`
	Icon               string     `json:"icon,omitempty"`
	Badge              string     `json:"badge,omitempty"`
	URL                string     `json:"url"`
	RequireInteraction bool       `json:"require_interaction"`
	ReceivedAt         time.Time  `json:"received_at"`
	ClickedAt          *time.Time `json:"clicked_at,omitempty"`
}
