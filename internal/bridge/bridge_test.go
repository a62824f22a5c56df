package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/dispatch"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-smartthings/internal/reconcile"
	"github.com/nerrad567/gray-logic-smartthings/internal/subscription"
	"github.com/nerrad567/gray-logic-smartthings/internal/tunnel"
)

type fakeTunnel struct {
	mu       sync.Mutex
	url      string
	startErr error
	stopped  bool
	onURL    func(string)
	order    *callOrder
}

func (f *fakeTunnel) OnURLChange(fn func(string)) { f.onURL = fn }

func (f *fakeTunnel) Start(_ context.Context) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.url, nil
}

func (f *fakeTunnel) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.order != nil {
		f.order.add("tunnel.stop")
	}
}

func (f *fakeTunnel) Status() tunnel.Status { return tunnel.Status{State: tunnel.StateLive} }
func (f *fakeTunnel) Live() bool            { return true }

type fakeSubs struct {
	mu      sync.Mutex
	ensured []string
	order   *callOrder
}

func (f *fakeSubs) Ensure(_ context.Context, publicURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, publicURL)
	return nil
}

func (f *fakeSubs) RenewLoop(ctx context.Context) { <-ctx.Done() }

func (f *fakeSubs) Shutdown(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order != nil {
		f.order.add("subs.shutdown")
	}
}

func (f *fakeSubs) Status() subscription.Status {
	return subscription.Status{State: subscription.StateActive}
}

func (f *fakeSubs) ensuredURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ensured...)
}

type fakeReconciler struct{}

func (fakeReconciler) Run(ctx context.Context)            { <-ctx.Done() }
func (fakeReconciler) ForceRefresh(context.Context) error { return nil }
func (fakeReconciler) Status() reconcile.Status           { return reconcile.Status{} }

type fakeChanges struct {
	ch chan device.Change
}

func (f *fakeChanges) Subscribe(int) (<-chan device.Change, func()) {
	return f.ch, func() {}
}

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeBus struct {
	mu       sync.Mutex
	messages []published
	handlers map[string]mqtt.MessageHandler
	notify   chan struct{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		handlers: make(map[string]mqtt.MessageHandler),
		notify:   make(chan struct{}, 16),
	}
}

func (f *fakeBus) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	f.messages = append(f.messages, published{topic, payload, retained})
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBus) IsConnected() bool { return true }

func (f *fakeBus) topicMessages(prefix string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, m := range f.messages {
		if strings.HasPrefix(m.topic, prefix) {
			out = append(out, m)
		}
	}
	return out
}

type fakeSender struct {
	mu   sync.Mutex
	reqs []dispatch.Request
}

func (f *fakeSender) Send(_ context.Context, req dispatch.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return nil
}

type callOrder struct {
	mu    sync.Mutex
	calls []string
}

func (c *callOrder) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func testConfig() *config.Config {
	return &config.Config{
		Webhook: config.WebhookConfig{PathPrefix: "/api/smartthingsce"},
		MQTT:    config.MQTTConfig{QoS: 1},
	}
}

func testIdentity() Identity {
	return Identity{HookID: "hook-1", AppID: "app-1", TunnelSubdomain: "aa11bb22-cc33dd44-stce"}
}

func newTestBridge(t *testing.T, opts Options) *Bridge {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig()
	}
	if opts.Reconciler == nil {
		opts.Reconciler = fakeReconciler{}
	}
	if opts.Changes == nil {
		opts.Changes = &fakeChanges{ch: make(chan device.Change)}
	}
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

func TestStartRegistersWebhookTarget(t *testing.T) {
	tun := &fakeTunnel{url: "https://aa11bb22-cc33dd44-stce.loca.lt"}
	subs := &fakeSubs{}
	b := newTestBridge(t, Options{Identity: testIdentity(), Tunnel: tun, Subs: subs})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	want := "https://aa11bb22-cc33dd44-stce.loca.lt/api/smartthingsce/hook-1"
	urls := subs.ensuredURLs()
	if len(urls) != 1 || urls[0] != want {
		t.Errorf("Ensure called with %v, want [%s]", urls, want)
	}
}

func TestURLChangeReRegisters(t *testing.T) {
	tun := &fakeTunnel{url: "https://one.loca.lt"}
	subs := &fakeSubs{}
	b := newTestBridge(t, Options{Identity: testIdentity(), Tunnel: tun, Subs: subs})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	tun.onURL("https://two.loca.lt")

	deadline := time.After(2 * time.Second)
	for {
		urls := subs.ensuredURLs()
		if len(urls) == 2 {
			if want := "https://two.loca.lt/api/smartthingsce/hook-1"; urls[1] != want {
				t.Errorf("re-registration target = %q, want %q", urls[1], want)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("re-registration never happened, urls = %v", urls)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFailedTunnelStartIsNotFatal(t *testing.T) {
	tun := &fakeTunnel{startErr: tunnel.ErrTunnelUnavailable}
	subs := &fakeSubs{}
	b := newTestBridge(t, Options{Identity: testIdentity(), Tunnel: tun, Subs: subs})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, tunnel failure must not be fatal", err)
	}
	defer b.Stop()

	if got := subs.ensuredURLs(); len(got) != 0 {
		t.Errorf("Ensure called despite missing tunnel: %v", got)
	}
}

func TestStopDeletesSubscriptionsBeforeTunnel(t *testing.T) {
	order := &callOrder{}
	tun := &fakeTunnel{url: "https://one.loca.lt", order: order}
	subs := &fakeSubs{order: order}
	b := newTestBridge(t, Options{Identity: testIdentity(), Tunnel: tun, Subs: subs})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b.Stop()

	want := []string{"subs.shutdown", "tunnel.stop"}
	order.mu.Lock()
	defer order.mu.Unlock()
	if len(order.calls) != 2 || order.calls[0] != want[0] || order.calls[1] != want[1] {
		t.Errorf("shutdown order = %v, want %v", order.calls, want)
	}
}

func TestStartTwice(t *testing.T) {
	b := newTestBridge(t, Options{Identity: testIdentity()})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if err := b.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestChangesFanOutToBus(t *testing.T) {
	bus := newFakeBus()
	changes := &fakeChanges{ch: make(chan device.Change, 1)}
	b := newTestBridge(t, Options{
		Identity:   testIdentity(),
		Changes:    changes,
		Bus:        bus,
		Dispatcher: &fakeSender{},
	})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	changes.ch <- device.Change{
		DeviceID:   "dev-1",
		DeviceName: "Hall Light",
		Domain:     capability.DomainLight,
		Component:  "main",
		Capability: capability.Switch,
		Attribute:  "switch",
		Value: device.AttributeValue{
			Value:     "on",
			Timestamp: time.Now().UTC(),
			Source:    device.SourceEvent,
		},
	}

	deadline := time.After(2 * time.Second)
	for {
		msgs := bus.topicMessages("graylogic/state/smartthings/dev-1")
		if len(msgs) == 1 {
			var state StateMessage
			if err := json.Unmarshal(msgs[0].payload, &state); err != nil {
				t.Fatalf("decoding state message: %v", err)
			}
			if state.Value != "on" || state.Attribute != "switch" || state.Source != "event" {
				t.Errorf("state message = %+v", state)
			}
			if !msgs[0].retained {
				t.Error("state message must be retained")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("state message never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBusCommandReachesDispatcher(t *testing.T) {
	bus := newFakeBus()
	sender := &fakeSender{}
	b := newTestBridge(t, Options{Identity: testIdentity(), Bus: bus, Dispatcher: sender})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	handler := bus.handlers["graylogic/command/smartthings/+"]
	if handler == nil {
		t.Fatal("command topic never subscribed")
	}

	payload := []byte(`{"capability":"switchLevel","command":"setLevel","arguments":[60]}`)
	if err := handler("graylogic/command/smartthings/dev-9", payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.reqs) != 1 {
		t.Fatalf("dispatched requests = %d, want 1", len(sender.reqs))
	}
	req := sender.reqs[0]
	if req.DeviceID != "dev-9" || req.Command != "setLevel" || req.Capability != capability.SwitchLevel {
		t.Errorf("request = %+v", req)
	}
}

func TestMalformedBusCommandIgnored(t *testing.T) {
	bus := newFakeBus()
	sender := &fakeSender{}
	b := newTestBridge(t, Options{Identity: testIdentity(), Bus: bus, Dispatcher: sender})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	handler := bus.handlers["graylogic/command/smartthings/+"]
	if err := handler("graylogic/command/smartthings/dev-9", []byte(`{broken`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(sender.reqs) != 0 {
		t.Error("malformed payload reached the dispatcher")
	}
}

func TestTargetURLTrimsTrailingSlash(t *testing.T) {
	b := newTestBridge(t, Options{Identity: testIdentity()})
	got := b.TargetURL("https://sub.loca.lt/")
	want := "https://sub.loca.lt/api/smartthingsce/hook-1"
	if got != want {
		t.Errorf("TargetURL() = %q, want %q", got, want)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name string
		opts Options
	}{
		{"missing config", Options{Reconciler: fakeReconciler{}, Changes: &fakeChanges{}}},
		{"missing reconciler", Options{Config: cfg, Changes: &fakeChanges{}}},
		{"tunnel without subs", Options{Config: cfg, Reconciler: fakeReconciler{}, Changes: &fakeChanges{}, Tunnel: &fakeTunnel{}}},
		{"bus without dispatcher", Options{Config: cfg, Reconciler: fakeReconciler{}, Changes: &fakeChanges{}, Bus: newFakeBus()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil, want validation error")
			}
		})
	}
}
