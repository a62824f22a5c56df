package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
)

// CloudAPI is the slice of the SmartThings client the reconciler polls.
type CloudAPI interface {
	ListDevices(ctx context.Context, locationID string) ([]smartthings.DeviceInfo, error)
	ListRooms(ctx context.Context, locationID string) ([]smartthings.Room, error)
	ListScenes(ctx context.Context, locationID string) ([]smartthings.Scene, error)
	GetDeviceStatus(ctx context.Context, deviceID string) (*smartthings.DeviceStatus, error)
	GetDeviceHealth(ctx context.Context, deviceID string) (*smartthings.DeviceHealth, error)
}

// Directory is the slice of the device directory the reconciler feeds.
type Directory interface {
	Bootstrap(ctx context.Context, shapes []device.Shape) (added, refreshed int)
	ApplyBatch(ctx context.Context, updates []device.Update) int
	MarkHealth(id string, state device.HealthState) (bool, error)
}

// Logger is the logging interface used by the Reconciler.
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

// Status is a point-in-time view of the reconciler for health reporting.
type Status struct {
	Cycles     int64     `json:"cycles"`
	LastSync   time.Time `json:"last_sync,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Devices    int       `json:"devices"`
	StaleMarks int64     `json:"stale_marks"`
}

// Reconciler runs full cloud polls that true up the directory.
type Reconciler struct {
	cloud      CloudAPI
	directory  Directory
	cfg        config.ReconcileConfig
	locationID string
	logger     Logger

	// syncMu serialises cycles: ticker, startup and ForceRefresh.
	syncMu sync.Mutex

	mu     sync.RWMutex
	rooms  []smartthings.Room
	scenes []smartthings.Scene
	status Status
}

// Options configures a Reconciler.
type Options struct {
	Cloud      CloudAPI
	Directory  Directory
	Config     config.ReconcileConfig
	LocationID string
	Logger     Logger
}

// New creates a Reconciler.
func New(opts Options) (*Reconciler, error) {
	if opts.Cloud == nil {
		return nil, fmt.Errorf("reconcile: cloud client is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("reconcile: directory is required")
	}
	r := &Reconciler{
		cloud:      opts.Cloud,
		directory:  opts.Directory,
		cfg:        opts.Config,
		locationID: opts.LocationID,
		logger:     opts.Logger,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r, nil
}

// Run performs a startup sync and then repeats at the configured
// interval until ctx is cancelled. A failed cycle logs and waits for
// the next tick.
func (r *Reconciler) Run(ctx context.Context) {
	if err := r.Sync(ctx); err != nil {
		r.logger.Error("startup reconciliation failed", "error", err)
	}

	interval := r.cfg.IntervalDuration()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("reconciliation cycle failed", "error", err)
			}
		}
	}
}

// Sync runs one full cycle, blocking until it completes. Cycles are
// serialised; a concurrent caller waits its turn.
func (r *Reconciler) Sync(ctx context.Context) error {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()
	return r.sync(ctx)
}

// ForceRefresh runs a cycle immediately, failing fast when one is
// already running. Backs the API's refresh endpoint, where a caller
// should get an answer rather than queue behind the ticker.
func (r *Reconciler) ForceRefresh(ctx context.Context) error {
	if !r.syncMu.TryLock() {
		return ErrSyncInProgress
	}
	defer r.syncMu.Unlock()
	r.logger.Info("forced reconciliation requested")
	return r.sync(ctx)
}

// Rooms returns the room list from the last successful cycle.
func (r *Reconciler) Rooms() []smartthings.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]smartthings.Room(nil), r.rooms...)
}

// Scenes returns the scene list from the last successful cycle.
func (r *Reconciler) Scenes() []smartthings.Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]smartthings.Scene(nil), r.scenes...)
}

// Status returns the reconciler's counters.
func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// sync is one full cycle. Caller holds syncMu.
func (r *Reconciler) sync(ctx context.Context) error {
	started := time.Now()

	rooms, err := r.cloud.ListRooms(ctx, r.locationID)
	if err != nil {
		// Rooms only decorate shapes; the cycle continues without them.
		r.logger.Warn("listing rooms failed", "error", err)
	}
	roomNames := make(map[string]string, len(rooms))
	for _, room := range rooms {
		roomNames[room.RoomID] = room.Name
	}

	infos, err := r.cloud.ListDevices(ctx, r.locationID)
	if err != nil {
		r.fail(err)
		return fmt.Errorf("%w: listing devices: %w", ErrSyncFailed, err)
	}

	shapes := make([]device.Shape, 0, len(infos))
	for _, info := range infos {
		shapes = append(shapes, shapeFromInfo(info, roomNames))
	}
	added, refreshed := r.directory.Bootstrap(ctx, shapes)

	scenes, err := r.cloud.ListScenes(ctx, r.locationID)
	if err != nil {
		r.logger.Warn("listing scenes failed", "error", err)
		scenes = nil
	}

	var staleMarks int64
	for _, info := range infos {
		if err := r.pollDevice(ctx, info.DeviceID); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			staleMarks++
			r.markUnreachable(ctx, info.DeviceID, err)
		}
	}

	r.mu.Lock()
	if rooms != nil {
		r.rooms = rooms
	}
	if scenes != nil {
		r.scenes = scenes
	}
	r.status.Cycles++
	r.status.LastSync = time.Now().UTC()
	r.status.LastError = ""
	r.status.Devices = len(infos)
	r.status.StaleMarks += staleMarks
	r.mu.Unlock()

	r.logger.Info("reconciliation cycle complete",
		"devices", len(infos), "added", added, "refreshed", refreshed,
		"unreachable", staleMarks, "took", time.Since(started))
	return nil
}

// pollDevice fetches one device's status and applies it. A rate-limit
// response pauses for the advertised delay and retries once, keeping
// the cycle alive instead of abandoning the remaining devices.
func (r *Reconciler) pollDevice(ctx context.Context, deviceID string) error {
	status, err := r.fetchStatus(ctx, deviceID)
	if errors.Is(err, smartthings.ErrRateLimited) {
		delay := smartthings.RetryAfterFrom(err, 30*time.Second)
		r.logger.Warn("rate limited during poll, pausing cycle", "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		status, err = r.fetchStatus(ctx, deviceID)
	}
	if err != nil {
		return err
	}

	updates := updatesFromStatus(deviceID, status)
	applied := r.directory.ApplyBatch(ctx, updates)
	if applied > 0 {
		r.logger.Debug("poll corrected drift", "device_id", deviceID, "changes", applied)
	}
	if _, err := r.directory.MarkHealth(deviceID, device.HealthOnline); err != nil {
		r.logger.Debug("marking device online failed", "device_id", deviceID, "error", err)
	}
	return nil
}

func (r *Reconciler) fetchStatus(ctx context.Context, deviceID string) (*smartthings.DeviceStatus, error) {
	timeout := r.cfg.DeviceTimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.cloud.GetDeviceStatus(fetchCtx, deviceID)
}

// markUnreachable records that a device could not be polled. With
// fetch_health enabled the cloud's own verdict distinguishes a device
// that is offline from one the bridge merely failed to reach.
func (r *Reconciler) markUnreachable(ctx context.Context, deviceID string, cause error) {
	state := device.HealthStale

	if r.cfg.FetchHealth {
		if health, err := r.cloud.GetDeviceHealth(ctx, deviceID); err == nil {
			if health.Online() {
				state = device.HealthStale
			} else {
				state = device.HealthOffline
			}
		}
	}

	r.logger.Warn("device unreachable during poll",
		"device_id", deviceID, "health", state, "error", cause)
	if _, err := r.directory.MarkHealth(deviceID, state); err != nil {
		r.logger.Debug("marking device health failed", "device_id", deviceID, "error", err)
	}
}

func (r *Reconciler) fail(err error) {
	r.mu.Lock()
	r.status.LastError = err.Error()
	r.mu.Unlock()
}
