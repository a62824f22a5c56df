package device

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
)

// Logger defines the logging interface used by the Directory.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// defaultSubscriberBuffer is the channel depth for change subscribers that
// do not specify one.
const defaultSubscriberBuffer = 64

// Directory is the canonical in-memory catalogue of devices and their
// current attribute values. Every mutation path (webhook events,
// reconciliation polls, optimistic command results) funnels through
// ApplyUpdate/ApplyBatch, which enforce a single conflict rule:
//
//   - a confirmed value (event or poll) replaces the stored value when its
//     timestamp is not older than the stored one
//   - a confirmed value always replaces an optimistic command value,
//     regardless of timestamps
//   - an optimistic command value always applies, representing the latest
//     local intent
//
// Stale confirmed updates never regress the visible value but are still
// handed to the history recorder.
//
// Entries are created by Bootstrap and updated in place; they are never
// removed except by Reset. All public methods are thread-safe.
type Directory struct {
	mu      sync.RWMutex
	devices map[string]*Device

	// counters, guarded by mu
	applied      uint64
	stale        uint64
	unknownDrops uint64

	subMu   sync.RWMutex
	subs    map[int]chan Change
	nextSub int

	// dropped is atomic: notify bumps it under subMu.RLock only, so
	// concurrent ApplyBatch callers may hit the drop branch together.
	dropped atomic.Uint64

	repo    ShapeRepository
	history HistoryRecorder
	logger  Logger
}

// NewDirectory creates a Directory. Both repo and history may be nil: the
// Directory then runs purely in memory, which is how the tests use it.
func NewDirectory(repo ShapeRepository, history HistoryRecorder) *Directory {
	return &Directory{
		devices: make(map[string]*Device),
		subs:    make(map[int]chan Change),
		repo:    repo,
		history: history,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger. Must be called before the directory is
// shared across goroutines; the field is not synchronised.
func (d *Directory) SetLogger(logger Logger) {
	d.logger = logger
}

// Rehydrate loads persisted device shapes into the directory so the API can
// answer immediately after a restart. Attribute values are not persisted;
// the first reconciliation cycle repopulates them.
func (d *Directory) Rehydrate(ctx context.Context) error {
	if d.repo == nil {
		return nil
	}

	shapes, err := d.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading device shapes: %w", err)
	}

	d.mu.Lock()
	for _, s := range shapes {
		if _, exists := d.devices[s.ID]; exists {
			continue
		}
		d.devices[s.ID] = newDevice(s)
	}
	count := len(d.devices)
	d.mu.Unlock()

	d.logger.Info("directory rehydrated", "devices", count)
	return nil
}

// Bootstrap merges the cloud device list into the directory. Unknown
// devices are created with empty attribute maps; known devices get their
// shape refreshed in place without touching attribute values. Devices
// missing from the list are kept, so a flaky cloud listing never empties
// the directory. Shapes are persisted best-effort after the merge.
func (d *Directory) Bootstrap(ctx context.Context, shapes []Shape) (added, refreshed int) {
	valid := make([]Shape, 0, len(shapes))
	for _, s := range shapes {
		if s.ID == "" || s.Name == "" {
			d.logger.Warn("skipping invalid device shape", "id", s.ID)
			continue
		}
		valid = append(valid, s)
	}

	d.mu.Lock()
	for _, s := range valid {
		if dev, exists := d.devices[s.ID]; exists {
			applyShape(dev, s)
			refreshed++
			continue
		}
		d.devices[s.ID] = newDevice(s)
		added++
	}
	d.mu.Unlock()

	if d.repo != nil && len(valid) > 0 {
		if err := d.repo.Save(ctx, valid); err != nil {
			d.logger.Warn("persisting device shapes failed", "error", err)
		}
	}

	if added > 0 || refreshed > 0 {
		d.logger.Info("directory bootstrapped", "added", added, "refreshed", refreshed)
	}
	return added, refreshed
}

// ApplyUpdate applies a single attribute update and reports whether the
// visible value changed. Updates for devices the directory has never seen
// are dropped: entries are only created by Bootstrap.
func (d *Directory) ApplyUpdate(ctx context.Context, u Update) bool {
	return d.ApplyBatch(ctx, []Update{u}) > 0
}

// ApplyBatch applies all updates from one inbound envelope atomically with
// respect to readers: no Snapshot taken concurrently can observe a subset
// of the batch. Returns the number of visible changes. Subscribers are
// notified and history is recorded after the lock is released.
func (d *Directory) ApplyBatch(ctx context.Context, updates []Update) int {
	if len(updates) == 0 {
		return 0
	}

	var changes []Change
	var recorded []Update

	d.mu.Lock()
	for _, u := range updates {
		if u.DeviceID == "" || u.Capability == "" || u.Attribute == "" {
			d.logger.Warn("dropping invalid update", "device_id", u.DeviceID)
			continue
		}

		dev, exists := d.devices[u.DeviceID]
		if !exists {
			d.unknownDrops++
			d.logger.Debug("update for unknown device dropped", "device_id", u.DeviceID)
			continue
		}

		if u.Timestamp.IsZero() {
			u.Timestamp = time.Now().UTC()
		}

		key := u.Key()
		existing, present := dev.Attributes[key]

		if present && !supersedes(existing, u) {
			// Late arrival: keep for history, never regress the visible value.
			d.stale++
			recorded = append(recorded, u)
			d.logger.Debug("stale update ignored",
				"device_id", u.DeviceID, "attribute", key.String(),
				"stored", existing.Timestamp, "incoming", u.Timestamp)
			continue
		}

		value := AttributeValue{
			Value:     u.Value,
			Unit:      u.Unit,
			Timestamp: u.Timestamp,
			Source:    u.Source,
		}
		dev.Attributes[key] = value
		if u.Source.Confirmed() {
			dev.LastSeen = u.Timestamp
		}
		d.applied++
		recorded = append(recorded, u)

		if !present || !valueEqual(existing.Value, u.Value) {
			changes = append(changes, Change{
				DeviceID:   dev.ID,
				DeviceName: dev.Name,
				Domain:     dev.Domain,
				Component:  key.Component,
				Capability: key.Capability,
				Attribute:  key.Attribute,
				Value:      value,
			})
		}
	}
	d.mu.Unlock()

	d.notify(changes)
	d.record(ctx, recorded)

	return len(changes)
}

// supersedes decides whether incoming replaces existing per the conflict
// rule documented on Directory.
func supersedes(existing AttributeValue, incoming Update) bool {
	if incoming.Source == SourceCommand {
		return true
	}
	if existing.Source == SourceCommand {
		return true
	}
	return !incoming.Timestamp.Before(existing.Timestamp)
}

// valueEqual compares two JSON-shaped values.
func valueEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Snapshot returns a point-in-time deep copy of a device. The copy is
// never a live reference, so callers cannot observe later mutations.
func (d *Directory) Snapshot(id string) (*Device, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dev, ok := d.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev.DeepCopy(), nil
}

// List returns deep copies of all devices.
func (d *Directory) List() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	devices := make([]Device, 0, len(d.devices))
	for _, dev := range d.devices {
		devices = append(devices, *dev.DeepCopy())
	}
	return devices
}

// ListByDomain returns deep copies of all devices in a domain.
func (d *Directory) ListByDomain(domain capability.Domain) []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var devices []Device
	for _, dev := range d.devices {
		if dev.Domain == domain {
			devices = append(devices, *dev.DeepCopy())
		}
	}
	return devices
}

// ListByRoom returns deep copies of all devices in a room.
func (d *Directory) ListByRoom(roomID string) []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var devices []Device
	for _, dev := range d.devices {
		if dev.RoomID == roomID {
			devices = append(devices, *dev.DeepCopy())
		}
	}
	return devices
}

// IDs returns the ids of all known devices. The reconciliation loop polls
// against this list.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.devices))
	for id := range d.devices {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of known devices.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.devices)
}

// MarkHealth sets a device's health state and reports whether it changed.
// Returns ErrDeviceNotFound for unknown devices.
func (d *Directory) MarkHealth(id string, state HealthState) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.devices[id]
	if !ok {
		return false, ErrDeviceNotFound
	}

	if dev.Health == state {
		return false, nil
	}
	dev.Health = state
	if state == HealthOnline {
		dev.LastSeen = time.Now().UTC()
	}
	return true, nil
}

// Reset discards every entry and the persisted shapes. Used when the
// account is re-authenticated and device ids can no longer be trusted.
func (d *Directory) Reset(ctx context.Context) {
	d.mu.Lock()
	count := len(d.devices)
	d.devices = make(map[string]*Device)
	d.mu.Unlock()

	if d.repo != nil {
		if err := d.repo.DeleteAll(ctx); err != nil {
			d.logger.Warn("clearing persisted shapes failed", "error", err)
		}
	}

	d.logger.Info("directory reset", "discarded", count)
}

// Subscribe registers a change listener. The returned channel receives
// every visible attribute change until cancel is called or the directory
// is closed. Sends never block: a subscriber that falls behind loses
// changes, which the reconciliation loop repairs within one cycle.
func (d *Directory) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	d.subMu.Lock()
	id := d.nextSub
	d.nextSub++
	ch := make(chan Change, buffer)
	d.subs[id] = ch
	d.subMu.Unlock()

	cancel := func() {
		d.subMu.Lock()
		if existing, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(existing)
		}
		d.subMu.Unlock()
	}
	return ch, cancel
}

// Close closes all subscriber channels. Further updates are still applied
// but no longer notified.
func (d *Directory) Close() {
	d.subMu.Lock()
	for id, ch := range d.subs {
		delete(d.subs, id)
		close(ch)
	}
	d.subMu.Unlock()
}

// notify fans a batch of changes out to all subscribers without blocking.
func (d *Directory) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}

	d.subMu.RLock()
	defer d.subMu.RUnlock()

	for _, ch := range d.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
				d.dropped.Add(1)
			}
		}
	}
}

// record hands accepted and stale updates to the history recorder.
func (d *Directory) record(ctx context.Context, updates []Update) {
	if d.history == nil || len(updates) == 0 {
		return
	}

	for _, u := range updates {
		if err := d.history.RecordAttribute(ctx, u); err != nil {
			d.logger.Debug("attribute history write failed",
				"device_id", u.DeviceID, "error", err)
		}
	}
}

// Stats summarises directory contents and update counters for monitoring.
type Stats struct {
	Devices        int                       `json:"devices"`
	Attributes     int                       `json:"attributes"`
	ByDomain       map[capability.Domain]int `json:"by_domain"`
	ByHealth       map[HealthState]int       `json:"by_health"`
	UpdatesApplied uint64                    `json:"updates_applied"`
	UpdatesStale   uint64                    `json:"updates_stale"`
	UnknownDropped uint64                    `json:"unknown_dropped"`
	NotifyDropped  uint64                    `json:"notify_dropped"`
}

// GetStats returns current directory statistics.
func (d *Directory) GetStats() Stats {
	d.mu.RLock()
	stats := Stats{
		Devices:        len(d.devices),
		ByDomain:       make(map[capability.Domain]int),
		ByHealth:       make(map[HealthState]int),
		UpdatesApplied: d.applied,
		UpdatesStale:   d.stale,
		UnknownDropped: d.unknownDrops,
	}
	for _, dev := range d.devices {
		stats.Attributes += len(dev.Attributes)
		stats.ByDomain[dev.Domain]++
		stats.ByHealth[dev.Health]++
	}
	d.mu.RUnlock()

	stats.NotifyDropped = d.dropped.Load()

	return stats
}

// newDevice creates a directory entry from a bootstrap shape.
func newDevice(s Shape) *Device {
	return &Device{
		ID:           s.ID,
		Name:         s.Name,
		TypeHint:     s.TypeHint,
		Manufacturer: s.Manufacturer,
		RoomID:       s.RoomID,
		RoomName:     s.RoomName,
		Domain:       capability.PrimaryDomain(s.Capabilities),
		Components:   append([]string(nil), s.Components...),
		Capabilities: append([]capability.Capability(nil), s.Capabilities...),
		Attributes:   make(map[AttributeKey]AttributeValue),
		Health:       HealthUnknown,
		UpdatedAt:    time.Now().UTC(),
	}
}

// applyShape refreshes an existing entry's shape in place, leaving
// attribute values untouched.
func applyShape(dev *Device, s Shape) {
	dev.Name = s.Name
	dev.TypeHint = s.TypeHint
	dev.Manufacturer = s.Manufacturer
	dev.RoomID = s.RoomID
	dev.RoomName = s.RoomName
	dev.Domain = capability.PrimaryDomain(s.Capabilities)
	dev.Components = append([]string(nil), s.Components...)
	dev.Capabilities = append([]capability.Capability(nil), s.Capabilities...)
	dev.UpdatedAt = time.Now().UTC()
}
