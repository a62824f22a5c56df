package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
)

// State is the registration state of the subscription set.
type State string

// Registration states.
const (
	StateUnregistered State = "unregistered"
	StateRegistering  State = "registering"
	StateActive       State = "active"
	StateDeleting     State = "deleting"
)

// CloudAPI is the slice of the SmartThings client the manager uses.
type CloudAPI interface {
	CreateSubscription(ctx context.Context, appID string, req smartthings.SubscriptionRequest) (*smartthings.Subscription, error)
	ListSubscriptions(ctx context.Context, appID string) ([]smartthings.Subscription, error)
	DeleteSubscription(ctx context.Context, appID, subscriptionID string) error
}

// DeviceSource yields the device ids to subscribe to. Satisfied by
// *device.Directory.
type DeviceSource interface {
	IDs() []string
}

// Logger is the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Record describes the currently registered subscription set.
type Record struct {
	SubscriptionIDs []string  `json:"subscription_ids"`
	TargetURL       string    `json:"target_url"`
	CreatedAt       time.Time `json:"created_at"`
	RenewAt         time.Time `json:"renew_at"`
}

// Status is a point-in-time view for health reporting.
type Status struct {
	State         State     `json:"state"`
	TargetURL     string    `json:"target_url,omitempty"`
	Subscriptions int       `json:"subscriptions"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	RenewAt       time.Time `json:"renew_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Manager registers, renews and deletes the cloud event subscriptions
// for one installed app.
//
// Thread Safety: all methods are safe for concurrent use; registration
// work is serialised by an internal mutex so a renewal tick and a URL
// change never interleave their delete/create sequences.
type Manager struct {
	cloud         CloudAPI
	devices       DeviceSource
	appID         string
	locationID    string
	renewInterval time.Duration
	logger        Logger

	mu        sync.Mutex
	state     State
	record    Record
	lastError error
}

// Options configures a Manager.
type Options struct {
	Cloud         CloudAPI
	Devices       DeviceSource
	AppID         string
	LocationID    string
	RenewInterval time.Duration
	Logger        Logger
}

// New creates a Manager in the Unregistered state.
func New(opts Options) (*Manager, error) {
	if opts.Cloud == nil {
		return nil, fmt.Errorf("subscription: cloud client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("subscription: device source is required")
	}
	if opts.AppID == "" {
		return nil, fmt.Errorf("subscription: app id is required")
	}

	m := &Manager{
		cloud:         opts.Cloud,
		devices:       opts.Devices,
		appID:         opts.AppID,
		locationID:    opts.LocationID,
		renewInterval: opts.RenewInterval,
		logger:        opts.Logger,
		state:         StateUnregistered,
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.renewInterval <= 0 {
		m.renewInterval = 6 * time.Hour
	}
	return m, nil
}

// Ensure makes the cloud-side registration match publicURL. A no-op
// when the active set already targets that URL; otherwise the stale set
// is deleted (best-effort, already-gone ignored) before the new one is
// created. Failure leaves the manager in Registering so the next
// renewal tick or URL change retries.
func (m *Manager) Ensure(ctx context.Context, publicURL string) error {
	if publicURL == "" {
		return ErrNoTargetURL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateActive && m.record.TargetURL == publicURL {
		m.logger.Debug("subscription already registered", "url", publicURL)
		return nil
	}
	return m.register(ctx, publicURL)
}

// RenewLoop re-registers the active set on a fixed schedule, well ahead
// of the cloud's assumed validity window. Runs until ctx is cancelled.
// A failed renewal logs and retries on the next tick; polling is never
// blocked.
func (m *Manager) RenewLoop(ctx context.Context) {
	ticker := time.NewTicker(m.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Renew(ctx); err != nil && !errors.Is(err, ErrNoTargetURL) {
				m.logger.Warn("subscription renewal failed, retrying next tick", "error", err)
			}
		}
	}
}

// Renew re-registers the current set against its existing target URL,
// pushing the expiry out. ErrNoTargetURL before the first registration.
func (m *Manager) Renew(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.TargetURL == "" {
		return ErrNoTargetURL
	}
	m.logger.Info("renewing subscriptions", "url", m.record.TargetURL)
	return m.register(ctx, m.record.TargetURL)
}

// Shutdown deletes the registration set: Active → Deleting →
// Unregistered. Called first in the bridge teardown order so no new
// events arrive while the tunnel and ingestor come down.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateDeleting
	m.deleteAll(ctx)
	m.state = StateUnregistered
	m.record = Record{}
	m.logger.Info("subscriptions deleted")
}

// Status returns the current registration state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		State:         m.state,
		TargetURL:     m.record.TargetURL,
		Subscriptions: len(m.record.SubscriptionIDs),
		CreatedAt:     m.record.CreatedAt,
		RenewAt:       m.record.RenewAt,
	}
	if m.lastError != nil {
		s.LastError = m.lastError.Error()
	}
	return s
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// register runs the delete-before-create sequence. Caller holds m.mu.
func (m *Manager) register(ctx context.Context, publicURL string) error {
	m.state = StateRegistering
	m.deleteAll(ctx)

	ids, err := m.createAll(ctx)
	if err != nil {
		m.lastError = err
		// Partial creations are recorded so the next attempt's delete
		// pass cleans them up.
		m.record = Record{SubscriptionIDs: ids, TargetURL: publicURL}
		return fmt.Errorf("%w: %w", ErrSubscriptionFailure, err)
	}

	now := time.Now().UTC()
	m.record = Record{
		SubscriptionIDs: ids,
		TargetURL:       publicURL,
		CreatedAt:       now,
		RenewAt:         now.Add(m.renewInterval),
	}
	m.state = StateActive
	m.lastError = nil
	m.logger.Info("subscriptions registered",
		"url", publicURL, "count", len(ids), "renew_at", m.record.RenewAt)
	return nil
}

// deleteAll removes every subscription the cloud reports for the app,
// best-effort. Already-deleted subscriptions are ignored; a failed list
// falls back to the locally recorded ids.
func (m *Manager) deleteAll(ctx context.Context) {
	ids := m.record.SubscriptionIDs
	if existing, err := m.cloud.ListSubscriptions(ctx, m.appID); err == nil {
		ids = ids[:0:0]
		for _, sub := range existing {
			ids = append(ids, sub.ID)
		}
	} else if !errors.Is(err, smartthings.ErrNotFound) {
		m.logger.Debug("listing subscriptions for cleanup failed", "error", err)
	}

	for _, id := range ids {
		if err := m.cloud.DeleteSubscription(ctx, m.appID, id); err != nil &&
			!errors.Is(err, smartthings.ErrNotFound) {
			m.logger.Warn("deleting stale subscription failed", "subscription_id", id, "error", err)
		}
	}
	m.record.SubscriptionIDs = nil
}

// createAll creates the location catch-all plus one subscription per
// known device, returning the ids created so far even on failure.
func (m *Manager) createAll(ctx context.Context) ([]string, error) {
	var ids []string

	if m.locationID != "" {
		sub, err := m.cloud.CreateSubscription(ctx, m.appID, smartthings.SubscriptionRequest{
			LocationID: m.locationID,
		})
		if err != nil {
			return ids, fmt.Errorf("creating location subscription: %w", err)
		}
		ids = append(ids, sub.ID)
	}

	for _, deviceID := range m.devices.IDs() {
		sub, err := m.cloud.CreateSubscription(ctx, m.appID, smartthings.SubscriptionRequest{
			DeviceID: deviceID,
		})
		if err != nil {
			return ids, fmt.Errorf("creating subscription for device %s: %w", deviceID, err)
		}
		ids = append(ids, sub.ID)
	}
	return ids, nil
}
