package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/reconcile"
	"github.com/nerrad567/gray-logic-smartthings/internal/subscription"
	"github.com/nerrad567/gray-logic-smartthings/internal/tunnel"
)

// shutdownTimeout bounds the cloud-side subscription deletion during
// Stop. Past it the bridge exits anyway; the next startup's
// delete-before-create pass cleans up whatever was left behind.
const shutdownTimeout = 10 * time.Second

// changeBuffer is the directory subscription buffer for the bus
// fan-out. Slow brokers drop changes rather than block updates; the
// retained state topic self-heals on the next change or poll.
const changeBuffer = 256

// Logger is the logging interface used by the Bridge.
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

// TunnelManager is the tunnel lifecycle the bridge drives. Satisfied by
// *tunnel.Manager.
type TunnelManager interface {
	OnURLChange(fn func(publicURL string))
	Start(ctx context.Context) (string, error)
	Stop()
	Status() tunnel.Status
	Live() bool
}

// SubscriptionManager is the registration lifecycle the bridge drives.
// Satisfied by *subscription.Manager.
type SubscriptionManager interface {
	Ensure(ctx context.Context, publicURL string) error
	RenewLoop(ctx context.Context)
	Shutdown(ctx context.Context)
	Status() subscription.Status
}

// Reconciler is the polling loop the bridge drives. Satisfied by
// *reconcile.Reconciler.
type Reconciler interface {
	Run(ctx context.Context)
	ForceRefresh(ctx context.Context) error
	Status() reconcile.Status
}

// ChangeSource delivers visible attribute changes. Satisfied by
// *device.Directory.
type ChangeSource interface {
	Subscribe(buffer int) (<-chan device.Change, func())
}

// Status aggregates the moving parts for the health endpoint.
type Status struct {
	StartedAt     time.Time            `json:"started_at"`
	Tunnel        *tunnel.Status       `json:"tunnel,omitempty"`
	Subscriptions *subscription.Status `json:"subscriptions,omitempty"`
	Reconcile     reconcile.Status     `json:"reconcile"`
	BusConnected  bool                 `json:"bus_connected"`
}

// Bridge coordinates the tunnel, subscription set, reconciler and bus.
type Bridge struct {
	cfg        *config.Config
	identity   Identity
	tunnel     TunnelManager
	subs       SubscriptionManager
	reconciler Reconciler
	changes    ChangeSource
	bus        *busLink
	busClient  BusClient
	logger     Logger

	mu        sync.Mutex
	started   bool
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures a Bridge. Tunnel and Subscriptions are both nil
// when the tunnel is disabled (poll-only mode); Bus is nil when MQTT is
// disabled.
type Options struct {
	Config     *config.Config
	Identity   Identity
	Tunnel     TunnelManager
	Subs       SubscriptionManager
	Reconciler Reconciler
	Dispatcher CommandSender
	Changes    ChangeSource
	Bus        BusClient
	Logger     Logger
}

// New creates a Bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bridge: config is required")
	}
	if opts.Reconciler == nil {
		return nil, fmt.Errorf("bridge: reconciler is required")
	}
	if opts.Changes == nil {
		return nil, fmt.Errorf("bridge: change source is required")
	}
	if (opts.Tunnel == nil) != (opts.Subs == nil) {
		return nil, fmt.Errorf("bridge: tunnel and subscription managers come as a pair")
	}
	if opts.Bus != nil && opts.Dispatcher == nil {
		return nil, fmt.Errorf("bridge: bus requires a dispatcher")
	}

	b := &Bridge{
		cfg:        opts.Config,
		identity:   opts.Identity,
		tunnel:     opts.Tunnel,
		subs:       opts.Subs,
		reconciler: opts.Reconciler,
		changes:    opts.Changes,
		busClient:  opts.Bus,
		logger:     opts.Logger,
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	if opts.Bus != nil {
		b.bus = newBusLink(opts.Bus, opts.Dispatcher, byte(opts.Config.MQTT.QoS), b.logger)
	}
	return b, nil
}

// Start brings the bridge up: bus wiring, tunnel, registration and
// loops. A failed tunnel start is not fatal; the bridge runs poll-only
// until the supervisor re-establishes the session.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.startedAt = time.Now().UTC()
	b.mu.Unlock()

	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if b.bus != nil {
		if err := b.bus.start(b.ctx); err != nil {
			return err
		}
		b.wg.Add(1)
		go b.fanOut()
		b.bus.publishHealth("online", b.tunnelState())
	}

	if b.tunnel != nil {
		b.tunnel.OnURLChange(func(publicURL string) {
			// Re-registration happens off the supervisor goroutine so a
			// slow cloud call never delays the next redial.
			go b.register(b.ctx, publicURL)
		})

		publicURL, err := b.tunnel.Start(b.ctx)
		if err != nil {
			b.logger.Warn("starting without tunnel, events resume when it recovers", "error", err)
		} else {
			b.register(b.ctx, publicURL)
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.subs.RenewLoop(b.ctx)
		}()
	} else {
		b.logger.Info("tunnel disabled, running poll-only")
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.reconciler.Run(b.ctx)
	}()

	b.logger.Info("bridge started", "hook_id", b.identity.HookID)
	return nil
}

// Stop tears the bridge down: subscriptions first so the cloud stops
// sending, then the tunnel, then the loops.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()

	if b.subs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		b.subs.Shutdown(ctx)
		cancel()
	}
	if b.tunnel != nil {
		b.tunnel.Stop()
	}

	b.cancel()
	b.wg.Wait()

	if b.bus != nil {
		b.bus.publishHealth("offline", "")
	}
	b.logger.Info("bridge stopped")
}

// ForceRefresh triggers an immediate reconciliation cycle.
func (b *Bridge) ForceRefresh(ctx context.Context) error {
	return b.reconciler.ForceRefresh(ctx)
}

// Status returns the aggregated component status.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	startedAt := b.startedAt
	b.mu.Unlock()

	s := Status{
		StartedAt: startedAt,
		Reconcile: b.reconciler.Status(),
	}
	if b.tunnel != nil {
		t := b.tunnel.Status()
		s.Tunnel = &t
	}
	if b.subs != nil {
		sub := b.subs.Status()
		s.Subscriptions = &sub
	}
	if b.busClient != nil {
		s.BusConnected = b.busClient.IsConnected()
	}
	return s
}

// TargetURL returns the full webhook URL for a tunnel public URL.
func (b *Bridge) TargetURL(publicURL string) string {
	return strings.TrimSuffix(publicURL, "/") +
		b.cfg.Webhook.PathPrefix + "/" + b.identity.HookID
}

// register points the cloud subscription set at the webhook behind the
// given public URL. Failures are logged; the renewal loop retries.
func (b *Bridge) register(ctx context.Context, publicURL string) {
	target := b.TargetURL(publicURL)
	if err := b.subs.Ensure(ctx, target); err != nil {
		b.logger.Warn("subscription registration failed, renewal will retry",
			"target", target, "error", err)
		return
	}
	b.logger.Info("cloud subscriptions target updated", "target", target)
}

// fanOut forwards directory changes to the bus until shutdown.
func (b *Bridge) fanOut() {
	defer b.wg.Done()

	ch, unsubscribe := b.changes.Subscribe(changeBuffer)
	defer unsubscribe()

	for {
		select {
		case <-b.ctx.Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}
			b.bus.publishChange(change)
		}
	}
}

func (b *Bridge) tunnelState() string {
	if b.tunnel == nil {
		return ""
	}
	return string(b.tunnel.Status().State)
}
