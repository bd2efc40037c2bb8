package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

var (
	// ErrUnsupported is returned by every operation once the platform has
	// been found to lack push support.
	ErrUnsupported = errors.New("push notifications are not supported on this device")
	// ErrBusy is returned while a check or a subscribe/unsubscribe is running.
	ErrBusy = errors.New("push subscription change already in progress")
	// ErrPermissionDenied means the user did not grant notification
	// permission. It is an outcome to explain, not a failure.
	ErrPermissionDenied = errors.New("notification permission not granted")
)

// Permission is the platform's notification permission.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Platform is the device-side push capability.
type Platform interface {
	Supported() bool
	RequestPermission(ctx context.Context) (Permission, error)
	// Subscription returns the current registration, or nil.
	Subscription(ctx context.Context) (*webpush.Subscription, error)
	Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error)
	// Unsubscribe cancels the registration and reports whether one existed.
	Unsubscribe(ctx context.Context) (bool, error)
}

// Backend mirrors the registration on the attendance server.
type Backend interface {
	VAPIDPublicKey(ctx context.Context) (string, error)
	RegisterPushSubscription(ctx context.Context, sub *webpush.Subscription) error
	DeletePushSubscription(ctx context.Context) error
}

// Controller drives the opt-in state machine. Platform and backend are
// updated in sequence with no rollback: if the backend step fails after the
// platform registered, the two can disagree until the next toggle.
type Controller struct {
	mu        sync.Mutex
	state     State
	platform  Platform
	backend   Backend
	logger    *slog.Logger
	listeners []func(State)
	checking  bool
}

// NewController starts in StateChecking when the platform supports push and
// in StateUnsupported otherwise. Support is never probed again.
func NewController(platform Platform, backend Backend, logger *slog.Logger) *Controller {
	state := StateUnsupported
	if platform.Supported() {
		state = StateChecking
	}
	return &Controller{
		state:    state,
		platform: platform,
		backend:  backend,
		logger:   logger,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange registers fn to be called after every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Check resolves StateChecking by querying the platform registration. A
// failed query is treated as not subscribed.
func (c *Controller) Check(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateUnsupported:
		c.mu.Unlock()
		return ErrUnsupported
	case StateChecking:
		if c.checking {
			c.mu.Unlock()
			return ErrBusy
		}
		c.checking = true
	default:
		// Already resolved.
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.checking = false
		c.mu.Unlock()
	}()

	sub, err := c.platform.Subscription(ctx)
	if err != nil {
		c.set(StateUnsubscribed)
		return fmt.Errorf("check push subscription: %w", err)
	}
	if sub != nil {
		c.set(StateSubscribed)
	} else {
		c.set(StateUnsubscribed)
	}
	return nil
}

// Subscribe asks for permission, fetches the server key, registers with the
// platform and then with the backend. Any failure returns the control to
// StateUnsubscribed.
func (c *Controller) Subscribe(ctx context.Context) error {
	if err := c.begin(StateUnsubscribed); err != nil {
		return err
	}

	if err := c.subscribe(ctx); err != nil {
		c.set(StateUnsubscribed)
		if errors.Is(err, ErrPermissionDenied) {
			c.logger.Info("push permission not granted")
		} else {
			c.logger.Error("push subscribe", "error", err)
		}
		return err
	}

	c.set(StateSubscribed)
	c.logger.Info("push subscribed")
	return nil
}

func (c *Controller) subscribe(ctx context.Context) error {
	perm, err := c.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if perm != PermissionGranted {
		return ErrPermissionDenied
	}

	key, err := c.backend.VAPIDPublicKey(ctx)
	if err != nil {
		return fmt.Errorf("fetch server key: %w", err)
	}

	sub, err := c.platform.Subscribe(ctx, key)
	if err != nil {
		return fmt.Errorf("platform subscribe: %w", err)
	}

	if err := c.backend.RegisterPushSubscription(ctx, sub); err != nil {
		return fmt.Errorf("register with backend: %w", err)
	}
	return nil
}

// Unsubscribe cancels the platform registration, if any, and deletes the
// backend record. Both steps are always attempted. On failure the control
// returns to StateSubscribed.
func (c *Controller) Unsubscribe(ctx context.Context) error {
	if err := c.begin(StateSubscribed); err != nil {
		return err
	}

	var errs []error
	if _, err := c.platform.Unsubscribe(ctx); err != nil {
		errs = append(errs, fmt.Errorf("platform unsubscribe: %w", err))
	}
	if err := c.backend.DeletePushSubscription(ctx); err != nil {
		errs = append(errs, fmt.Errorf("delete from backend: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		c.set(StateSubscribed)
		c.logger.Error("push unsubscribe", "error", err)
		return err
	}

	c.set(StateUnsubscribed)
	c.logger.Info("push unsubscribed")
	return nil
}

// begin moves from the required state into StateTransitioning.
func (c *Controller) begin(required State) error {
	c.mu.Lock()
	switch c.state {
	case StateUnsupported:
		c.mu.Unlock()
		return ErrUnsupported
	case StateChecking, StateTransitioning:
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != required {
		err := &TransitionError{From: c.state, To: StateTransitioning}
		c.mu.Unlock()
		return fmt.Errorf("expected %s: %w", required, err)
	}
	c.state = StateTransitioning
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	notify(listeners, StateTransitioning)
	return nil
}

func (c *Controller) set(s State) {
	c.mu.Lock()
	if !CanTransition(c.state, s) {
		c.logger.Error("push state machine", "error", &TransitionError{From: c.state, To: s})
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	notify(listeners, s)
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}
