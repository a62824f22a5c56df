package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
)

// CloudAPI is the slice of the SmartThings client the dispatcher uses.
type CloudAPI interface {
	SendCommands(ctx context.Context, deviceID string, commands []smartthings.Command) error
	ExecuteScene(ctx context.Context, sceneID string) error
}

// Directory is the slice of the device directory the dispatcher reads
// and optimistically writes.
type Directory interface {
	Snapshot(id string) (*device.Device, error)
	ApplyBatch(ctx context.Context, updates []device.Update) int
}

// Logger is the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Request is one device command heading for the cloud.
type Request struct {
	DeviceID   string                `json:"device_id"`
	Component  string                `json:"component,omitempty"`
	Capability capability.Capability `json:"capability"`
	Command    string                `json:"command"`
	Arguments  []any                 `json:"arguments,omitempty"`
}

// Stats are the dispatcher's running counters.
type Stats struct {
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Rejected int64 `json:"rejected"`
	Scenes   int64 `json:"scenes"`
}

// Dispatcher validates and sends device commands.
type Dispatcher struct {
	cloud     CloudAPI
	directory Directory
	cfg       config.DispatchConfig
	logger    Logger

	mu    sync.Mutex
	stats Stats
}

// Options configures a Dispatcher.
type Options struct {
	Cloud     CloudAPI
	Directory Directory
	Config    config.DispatchConfig
	Logger    Logger
}

// New creates a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Cloud == nil {
		return nil, fmt.Errorf("dispatch: cloud client is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("dispatch: directory is required")
	}
	d := &Dispatcher{
		cloud:     opts.Cloud,
		directory: opts.Directory,
		cfg:       opts.Config,
		logger:    opts.Logger,
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	return d, nil
}

// Send validates and dispatches one command. Validation failures are
// local and instant; a cloud rejection or timeout returns
// ErrDispatchFailed with nothing applied and no automatic retry.
func (d *Dispatcher) Send(ctx context.Context, req Request) error {
	dev, err := d.directory.Snapshot(req.DeviceID)
	if err != nil {
		d.count(func(s *Stats) { s.Rejected++ })
		return err
	}

	if err := d.validate(dev, req); err != nil {
		d.count(func(s *Stats) { s.Rejected++ })
		return err
	}

	component := req.Component
	if component == "" {
		component = device.ComponentMain
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.commandTimeout())
	defer cancel()

	err = d.cloud.SendCommands(sendCtx, req.DeviceID, []smartthings.Command{{
		Component:  component,
		Capability: string(req.Capability),
		Command:    req.Command,
		Arguments:  arguments(req.Arguments),
	}})
	if err != nil {
		d.count(func(s *Stats) { s.Failed++ })
		d.logger.Warn("command rejected by cloud",
			"device_id", req.DeviceID, "command", req.Command, "error", err)
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	d.count(func(s *Stats) { s.Sent++ })
	d.logger.Info("command dispatched",
		"device_id", req.DeviceID, "capability", req.Capability, "command", req.Command)

	if p, ok := predict(req.Capability, req.Command, req.Arguments); ok {
		d.directory.ApplyBatch(ctx, []device.Update{
			optimisticUpdate(req, p, time.Now().UTC()),
		})
	}
	return nil
}

// ExecuteScene runs a cloud scene. Scenes touch devices the bridge may
// not even track, so no optimistic update is applied; the resulting
// events and the next poll carry the outcome.
func (d *Dispatcher) ExecuteScene(ctx context.Context, sceneID string) error {
	execCtx, cancel := context.WithTimeout(ctx, d.commandTimeout())
	defer cancel()

	if err := d.cloud.ExecuteScene(execCtx, sceneID); err != nil {
		d.count(func(s *Stats) { s.Failed++ })
		return fmt.Errorf("%w: scene %s: %w", ErrDispatchFailed, sceneID, err)
	}
	d.count(func(s *Stats) { s.Scenes++ })
	d.logger.Info("scene executed", "scene_id", sceneID)
	return nil
}

// Stats returns a copy of the running counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// validate checks the device advertises the capability and the command
// passes the registry schema. Capabilities the registry has never heard
// of pass through: the cloud is the authority on vendor extensions.
func (d *Dispatcher) validate(dev *device.Device, req Request) error {
	if req.Command == "" {
		return fmt.Errorf("%w: empty command", ErrUnsupportedCommand)
	}

	advertised := false
	for _, c := range dev.Capabilities {
		if c == req.Capability {
			advertised = true
			break
		}
	}
	if !advertised {
		return fmt.Errorf("%w: device %s does not carry %s",
			ErrUnsupportedCommand, req.DeviceID, req.Capability)
	}

	if err := capability.ValidateCommand(req.Capability, req.Command, len(req.Arguments)); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedCommand, err)
	}
	return nil
}

func (d *Dispatcher) commandTimeout() time.Duration {
	if t := d.cfg.CommandTimeoutDuration(); t > 0 {
		return t
	}
	return 15 * time.Second
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// arguments normalises a nil slice to an empty one so the cloud always
// receives an arguments array.
func arguments(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
