package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"github.com/dukerupert/presenze/internal/model"
)

const authSecretSize = 16

// ErrKeyMismatch mirrors the browser refusing to subscribe with a different
// application server key while a registration already exists.
var ErrKeyMismatch = errors.New("existing subscription uses a different application server key")

// DeviceStore persists the device's single registration.
type DeviceStore interface {
	Get() (*model.DeviceSubscription, error)
	Save(sub *model.DeviceSubscription) error
	Delete() (bool, error)
}

// DeviceConfig configures the device platform.
type DeviceConfig struct {
	// PublicURL is the externally reachable base URL of this agent. Push
	// services deliver to PublicURL + "/push/receive/{id}". Push is
	// unsupported when it is empty.
	PublicURL string
	// Permission is the answer given when permission is requested.
	Permission Permission
}

// Device is the Platform implementation for this agent: it owns the ECDH
// key pair and auth secret a browser would keep for its push registration.
type Device struct {
	store      DeviceStore
	publicURL  string
	permission Permission
	now        func() time.Time
}

func NewDevice(store DeviceStore, cfg DeviceConfig) *Device {
	perm := cfg.Permission
	if perm == "" {
		perm = PermissionGranted
	}
	return &Device{
		store:      store,
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
		permission: perm,
		now:        time.Now,
	}
}

// Supported reports whether the agent has a public URL push services can
// reach.
func (d *Device) Supported() bool {
	u, err := url.Parse(d.publicURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// Audience is the origin push services must sign their VAPID token for.
func (d *Device) Audience() string {
	u, err := url.Parse(d.publicURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (d *Device) RequestPermission(ctx context.Context) (Permission, error) {
	return d.permission, nil
}

func (d *Device) Subscription(ctx context.Context) (*webpush.Subscription, error) {
	sub, err := d.store.Get()
	if err != nil {
		return nil, fmt.Errorf("load device subscription: %w", err)
	}
	if sub == nil {
		return nil, nil
	}
	return toWebPush(sub), nil
}

// Registration returns the stored registration including key material.
func (d *Device) Registration() (*model.DeviceSubscription, error) {
	return d.store.Get()
}

// Subscribe returns the existing registration when it was made with the same
// key, otherwise creates a new key pair and endpoint.
func (d *Device) Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error) {
	serverKey, err := decodeKey(applicationServerKey)
	if err != nil {
		return nil, fmt.Errorf("decode application server key: %w", err)
	}
	if _, err := ecdh.P256().NewPublicKey(serverKey); err != nil {
		return nil, fmt.Errorf("invalid application server key: %w", err)
	}

	existing, err := d.store.Get()
	if err != nil {
		return nil, fmt.Errorf("load device subscription: %w", err)
	}
	if existing != nil {
		prev, err := decodeKey(existing.ApplicationServerKey)
		if err != nil {
			return nil, fmt.Errorf("decode stored application server key: %w", err)
		}
		if string(prev) != string(serverKey) {
			return nil, ErrKeyMismatch
		}
		return toWebPush(existing), nil
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate device key: %w", err)
	}
	secret := make([]byte, authSecretSize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("generate auth secret: %w", err)
	}

	id := uuid.NewString()
	sub := &model.DeviceSubscription{
		ID:                   id,
		Endpoint:             d.publicURL + "/push/receive/" + id,
		P256dhKey:            encodeKey(priv.PublicKey().Bytes()),
		AuthKey:              encodeKey(secret),
		PrivateKey:           encodeKey(priv.Bytes()),
		ApplicationServerKey: encodeKey(serverKey),
		CreatedAt:            d.now().UTC(),
	}
	if err := d.store.Save(sub); err != nil {
		return nil, fmt.Errorf("save device subscription: %w", err)
	}
	return toWebPush(sub), nil
}

func (d *Device) Unsubscribe(ctx context.Context) (bool, error) {
	existed, err := d.store.Delete()
	if err != nil {
		return false, fmt.Errorf("delete device subscription: %w", err)
	}
	return existed, nil
}

func toWebPush(sub *model.DeviceSubscription) *webpush.Subscription {
	return &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}
}
