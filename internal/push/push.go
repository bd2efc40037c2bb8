// Package push manages this device's web-push registration: the
// subscription state machine, the device-side key material, and decryption
// of delivered messages.
package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Config holds VAPID configuration for the loopback sender.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Sender delivers messages to a push endpoint. The attendance backend is the
// real sender; this one exists so a device can test its own registration when
// it is given the VAPID key pair.
type Sender struct {
	cfg        Config
	httpClient *http.Client
}

// NewSender creates a sender. A nil httpClient uses http.DefaultClient.
func NewSender(cfg Config, httpClient *http.Client) *Sender {
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@presenze.local"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Sender{cfg: cfg, httpClient: httpClient}
}

// VAPIDPublicKey returns the application server key the sender signs with.
func (s *Sender) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// Send encrypts payload as JSON and posts it to the subscription endpoint.
func (s *Sender) Send(ctx context.Context, sub *webpush.Subscription, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, sub, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		Subscriber:      s.cfg.Subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}

var (
	// ErrNotSubscribed means there is no device registration to send to.
	ErrNotSubscribed = errors.New("device is not subscribed")
	// ErrLoopbackKey means the device subscribed with a server key other
	// than the one this sender signs with, so the receiver would reject it.
	ErrLoopbackKey = errors.New("device subscribed with a different server key")
)

// Loopback sends payload to the device's own registration.
func (s *Sender) Loopback(ctx context.Context, d *Device, payload any) error {
	reg, err := d.Registration()
	if err != nil {
		return fmt.Errorf("load device subscription: %w", err)
	}
	if reg == nil {
		return ErrNotSubscribed
	}
	mine, err := decodeKey(s.cfg.VAPIDPublicKey)
	if err != nil {
		return fmt.Errorf("decode sender key: %w", err)
	}
	theirs, err := decodeKey(reg.ApplicationServerKey)
	if err != nil || string(mine) != string(theirs) {
		return ErrLoopbackKey
	}
	return s.Send(ctx, toWebPush(reg), payload)
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	return publicKey, privateKey, nil
}

// decodeKey accepts base64url or standard base64, padded or not, the way
// browsers and push libraries exchange keys.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func encodeKey(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
