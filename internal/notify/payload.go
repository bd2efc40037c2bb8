// Package notify turns decrypted push messages into inbox notifications and
// routes clicks to an open window.
package notify

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Payload is the JSON a push message carries.
type Payload struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon,omitempty"`
	Badge              string `json:"badge,omitempty"`
	Tag                string `json:"tag,omitempty"`
	RequireInteraction bool   `json:"requireInteraction,omitempty"`
	Data               Data   `json:"data"`
}

type Data struct {
	URL string `json:"url"`
}

const (
	defaultTitle = "Presenze"
	defaultBody  = "Hai una nuova notifica"
	defaultIcon  = "/static/icon-192.png"
	defaultBadge = "/static/badge-72.png"
	defaultURL   = "/"
)

// DefaultPayload is shown when a message has no usable payload.
func DefaultPayload() Payload {
	return Payload{
		Title: defaultTitle,
		Body:  defaultBody,
		Icon:  defaultIcon,
		Badge: defaultBadge,
		Data:  Data{URL: defaultURL},
	}
}

// ParsePayload never fails: empty or malformed input, or a message with no
// title, yields DefaultPayload. A missing url means "/".
func ParsePayload(raw []byte) Payload {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return DefaultPayload()
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return DefaultPayload()
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return DefaultPayload()
	}
	if p.Icon == "" {
		p.Icon = defaultIcon
	}
	if p.Badge == "" {
		p.Badge = defaultBadge
	}
	p.Data.URL = sanitizeURL(p.Data.URL)
	return p
}

// sanitizeURL keeps clicks on this origin: only absolute paths pass.
func sanitizeURL(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.ContainsRune(u, '\\') {
		return defaultURL
	}
	return u
}
