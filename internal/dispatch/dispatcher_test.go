package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
)

type fakeCloud struct {
	mu       sync.Mutex
	commands []smartthings.Command
	scenes   []string
	sendErr  error
	sceneErr error
}

func (f *fakeCloud) SendCommands(_ context.Context, _ string, commands []smartthings.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.commands = append(f.commands, commands...)
	return nil
}

func (f *fakeCloud) ExecuteScene(_ context.Context, sceneID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sceneErr != nil {
		return f.sceneErr
	}
	f.scenes = append(f.scenes, sceneID)
	return nil
}

type fakeDirectory struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	batches [][]device.Update
}

func newFakeDirectory(devices ...*device.Device) *fakeDirectory {
	f := &fakeDirectory{devices: make(map[string]*device.Device)}
	for _, d := range devices {
		f.devices[d.ID] = d
	}
	return f
}

func (f *fakeDirectory) Snapshot(id string) (*device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		return d.DeepCopy(), nil
	}
	return nil, device.ErrDeviceNotFound
}

func (f *fakeDirectory) ApplyBatch(_ context.Context, updates []device.Update) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, updates)
	return len(updates)
}

func dimmer() *device.Device {
	return &device.Device{
		ID:           "dev-1",
		Name:         "Hall Light",
		Capabilities: []capability.Capability{capability.Switch, capability.SwitchLevel},
	}
}

func newTestDispatcher(t *testing.T, cloud CloudAPI, dir Directory) *Dispatcher {
	t.Helper()
	d, err := New(Options{
		Cloud:     cloud,
		Directory: dir,
		Config:    config.DispatchConfig{CommandTimeout: 15},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestSendDispatchesAndAppliesOptimisticValue(t *testing.T) {
	cloud := &fakeCloud{}
	dir := newFakeDirectory(dimmer())
	d := newTestDispatcher(t, cloud, dir)

	err := d.Send(context.Background(), Request{
		DeviceID:   "dev-1",
		Capability: capability.Switch,
		Command:    "on",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(cloud.commands) != 1 {
		t.Fatalf("commands sent = %d, want 1", len(cloud.commands))
	}
	sent := cloud.commands[0]
	if sent.Component != device.ComponentMain || sent.Command != "on" {
		t.Errorf("sent command = %+v", sent)
	}
	if sent.Arguments == nil {
		t.Error("Arguments must be an empty array, not nil")
	}

	if len(dir.batches) != 1 {
		t.Fatalf("optimistic batches = %d, want 1", len(dir.batches))
	}
	update := dir.batches[0][0]
	if update.Source != device.SourceCommand {
		t.Errorf("Source = %q, want %q", update.Source, device.SourceCommand)
	}
	if update.Attribute != "switch" || update.Value != "on" {
		t.Errorf("optimistic update = %+v", update)
	}

	if got := d.Stats().Sent; got != 1 {
		t.Errorf("Stats().Sent = %d, want 1", got)
	}
}

func TestSendSetLevelPredictsLevel(t *testing.T) {
	cloud := &fakeCloud{}
	dir := newFakeDirectory(dimmer())
	d := newTestDispatcher(t, cloud, dir)

	err := d.Send(context.Background(), Request{
		DeviceID:   "dev-1",
		Capability: capability.SwitchLevel,
		Command:    "setLevel",
		Arguments:  []any{float64(80)},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	update := dir.batches[0][0]
	if update.Attribute != "level" || update.Value != float64(80) {
		t.Errorf("optimistic update = %+v", update)
	}
}

func TestSendUnknownDevice(t *testing.T) {
	d := newTestDispatcher(t, &fakeCloud{}, newFakeDirectory())
	err := d.Send(context.Background(), Request{
		DeviceID:   "ghost",
		Capability: capability.Switch,
		Command:    "on",
	})
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("Send() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSendRejectsCapabilityDeviceLacks(t *testing.T) {
	cloud := &fakeCloud{}
	d := newTestDispatcher(t, cloud, newFakeDirectory(dimmer()))

	err := d.Send(context.Background(), Request{
		DeviceID:   "dev-1",
		Capability: capability.Lock,
		Command:    "lock",
	})
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("Send() error = %v, want ErrUnsupportedCommand", err)
	}
	if len(cloud.commands) != 0 {
		t.Error("rejected command must not reach the cloud")
	}
	if got := d.Stats().Rejected; got != 1 {
		t.Errorf("Stats().Rejected = %d, want 1", got)
	}
}

func TestSendRejectsBadSchema(t *testing.T) {
	cloud := &fakeCloud{}
	d := newTestDispatcher(t, cloud, newFakeDirectory(dimmer()))

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown command", Request{DeviceID: "dev-1", Capability: capability.Switch, Command: "dim"}},
		{"missing argument", Request{DeviceID: "dev-1", Capability: capability.SwitchLevel, Command: "setLevel"}},
		{"empty command", Request{DeviceID: "dev-1", Capability: capability.Switch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Send(context.Background(), tt.req); !errors.Is(err, ErrUnsupportedCommand) {
				t.Errorf("Send() error = %v, want ErrUnsupportedCommand", err)
			}
		})
	}
	if len(cloud.commands) != 0 {
		t.Error("no rejected command may reach the cloud")
	}
}

func TestCloudRejectionAppliesNothing(t *testing.T) {
	cloud := &fakeCloud{sendErr: smartthings.ErrRequestFailed}
	dir := newFakeDirectory(dimmer())
	d := newTestDispatcher(t, cloud, dir)

	err := d.Send(context.Background(), Request{
		DeviceID:   "dev-1",
		Capability: capability.Switch,
		Command:    "on",
	})
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("Send() error = %v, want ErrDispatchFailed", err)
	}
	if len(dir.batches) != 0 {
		t.Error("optimistic update applied despite cloud failure")
	}
	if got := d.Stats().Failed; got != 1 {
		t.Errorf("Stats().Failed = %d, want 1", got)
	}
}

func TestUnknownCapabilityPassesThrough(t *testing.T) {
	cloud := &fakeCloud{}
	dev := dimmer()
	dev.Capabilities = append(dev.Capabilities, capability.Capability("samsungce.weirdMode"))
	dir := newFakeDirectory(dev)
	d := newTestDispatcher(t, cloud, dir)

	err := d.Send(context.Background(), Request{
		DeviceID:   "dev-1",
		Capability: capability.Capability("samsungce.weirdMode"),
		Command:    "engage",
	})
	if err != nil {
		t.Fatalf("Send() error = %v (vendor capabilities must pass)", err)
	}
	if len(cloud.commands) != 1 {
		t.Errorf("commands sent = %d, want 1", len(cloud.commands))
	}
	// No prediction exists for a vendor command.
	if len(dir.batches) != 0 {
		t.Error("unexpected optimistic update for unpredictable command")
	}
}

func TestExecuteScene(t *testing.T) {
	cloud := &fakeCloud{}
	dir := newFakeDirectory()
	d := newTestDispatcher(t, cloud, dir)

	if err := d.ExecuteScene(context.Background(), "scene-1"); err != nil {
		t.Fatalf("ExecuteScene() error = %v", err)
	}
	if len(cloud.scenes) != 1 || cloud.scenes[0] != "scene-1" {
		t.Errorf("scenes executed = %v", cloud.scenes)
	}
	if len(dir.batches) != 0 {
		t.Error("scene execution must not apply optimistic updates")
	}
	if got := d.Stats().Scenes; got != 1 {
		t.Errorf("Stats().Scenes = %d, want 1", got)
	}
}

func TestExecuteSceneFailure(t *testing.T) {
	cloud := &fakeCloud{sceneErr: errors.New("boom")}
	d := newTestDispatcher(t, cloud, newFakeDirectory())

	if err := d.ExecuteScene(context.Background(), "scene-1"); !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("ExecuteScene() error = %v, want ErrDispatchFailed", err)
	}
}

func TestPredictTable(t *testing.T) {
	tests := []struct {
		cap     capability.Capability
		command string
		args    []any
		attr    string
		value   any
		ok      bool
	}{
		{capability.Switch, "on", nil, "switch", "on", true},
		{capability.Switch, "off", nil, "switch", "off", true},
		{capability.Lock, "lock", nil, "lock", "locked", true},
		{capability.Lock, "unlock", nil, "lock", "unlocked", true},
		{capability.WindowShade, "close", nil, "windowShade", "closed", true},
		{capability.AudioMute, "mute", nil, "mute", "muted", true},
		{capability.MediaPlayback, "play", nil, "playbackStatus", "playing", true},
		{capability.ThermostatHeatingSetpoint, "setHeatingSetpoint", []any{21.5}, "heatingSetpoint", 21.5, true},
		{capability.ColorControl, "setColor", []any{map[string]any{"hue": 10}}, "", nil, false},
		{capability.AudioVolume, "volumeUp", nil, "", nil, false},
		{capability.WindowShade, "pause", nil, "", nil, false},
	}
	for _, tt := range tests {
		p, ok := predict(tt.cap, tt.command, tt.args)
		if ok != tt.ok {
			t.Errorf("predict(%s, %s) ok = %v, want %v", tt.cap, tt.command, ok, tt.ok)
			continue
		}
		if ok && (p.attribute != tt.attr || !equal(p.value, tt.value)) {
			t.Errorf("predict(%s, %s) = {%s %v}, want {%s %v}",
				tt.cap, tt.command, p.attribute, p.value, tt.attr, tt.value)
		}
	}
}

func equal(a, b any) bool { return a == b }
