package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
)

// fakeSession is an in-memory Session. Accept blocks until Close, which
// is exactly how a healthy idle tunnel behaves; closing it simulates
// session death.
type fakeSession struct {
	url       string
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSession(url string) *fakeSession {
	return &fakeSession{url: url, closed: make(chan struct{})}
}

func (s *fakeSession) Accept() (net.Conn, error) {
	<-s.closed
	return nil, errors.New("session closed")
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (s *fakeSession) URL() string { return s.url }

func testConfig() config.TunnelConfig {
	return config.TunnelConfig{
		Enabled:        true,
		InitialBackoff: 1,
		MaxBackoff:     60,
		StartAttempts:  2,
	}
}

func newTestManager(t *testing.T, listen ListenFunc) *Manager {
	t.Helper()
	m, err := New(Options{
		Config:    testConfig(),
		Subdomain: "abcd1234-ef567890-stce",
		Handler:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		Listen:    listen,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestStartReturnsPublicURL(t *testing.T) {
	session := newFakeSession("https://abcd-stce.loca.lt")
	m := newTestManager(t, func(string) (Session, error) {
		return session, nil
	})

	url, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	if url != "https://abcd-stce.loca.lt" {
		t.Errorf("Start() url = %q, want %q", url, "https://abcd-stce.loca.lt")
	}
	if !m.Live() {
		t.Error("Live() = false after successful Start")
	}
	if got := m.URL(); got != url {
		t.Errorf("URL() = %q, want %q", got, url)
	}
	if s := m.Status(); s.State != StateLive {
		t.Errorf("Status().State = %q, want %q", s.State, StateLive)
	}
}

func TestStartExhaustsAttempts(t *testing.T) {
	var attempts atomic.Int32
	m := newTestManager(t, func(string) (Session, error) {
		attempts.Add(1)
		return nil, errors.New("tunnel endpoint unreachable")
	})

	_, err := m.Start(context.Background())
	if !errors.Is(err, ErrTunnelUnavailable) {
		t.Fatalf("Start() error = %v, want ErrTunnelUnavailable", err)
	}
	m.Stop()

	if got := attempts.Load(); got < 2 {
		t.Errorf("dial attempts = %d, want at least the configured budget (2)", got)
	}
	if m.Live() {
		t.Error("Live() = true after failed Start")
	}
}

func TestSessionDeathTriggersRedialAndURLChange(t *testing.T) {
	first := newFakeSession("https://one.loca.lt")
	second := newFakeSession("https://two.loca.lt")

	var dials atomic.Int32
	m := newTestManager(t, func(string) (Session, error) {
		switch dials.Add(1) {
		case 1:
			return first, nil
		default:
			return second, nil
		}
	})

	urls := make(chan string, 4)
	m.OnURLChange(func(u string) { urls <- u })

	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	// Kill the first session; the supervisor must re-dial and report
	// the replacement URL exactly once.
	first.Close()

	select {
	case u := <-urls:
		if u != "https://two.loca.lt" {
			t.Errorf("OnURLChange url = %q, want %q", u, "https://two.loca.lt")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for URL change notification")
	}

	if got := m.URL(); got != "https://two.loca.lt" {
		t.Errorf("URL() after redial = %q, want new session URL", got)
	}
	if s := m.Status(); s.Restarts != 1 {
		t.Errorf("Status().Restarts = %d, want 1", s.Restarts)
	}
}

func TestRecoveryAfterFailedStart(t *testing.T) {
	session := newFakeSession("https://late.loca.lt")

	var dials atomic.Int32
	m := newTestManager(t, func(string) (Session, error) {
		// Fail the Start budget, then come good in the supervisor.
		if dials.Add(1) <= 2 {
			return nil, errors.New("endpoint down")
		}
		return session, nil
	})

	urls := make(chan string, 1)
	m.OnURLChange(func(u string) { urls <- u })

	if _, err := m.Start(context.Background()); !errors.Is(err, ErrTunnelUnavailable) {
		t.Fatalf("Start() error = %v, want ErrTunnelUnavailable", err)
	}
	defer m.Stop()

	select {
	case u := <-urls:
		if u != "https://late.loca.lt" {
			t.Errorf("OnURLChange url = %q, want %q", u, "https://late.loca.lt")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor never recovered the tunnel")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := newTestManager(t, func(string) (Session, error) {
		return newFakeSession("https://x.loca.lt"), nil
	})
	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.Stop()
	m.Stop() // must not panic or deadlock

	if s := m.Status(); s.State != StateStopped {
		t.Errorf("Status().State = %q, want %q", s.State, StateStopped)
	}
	if m.URL() != "" {
		t.Error("URL() should be empty after Stop")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing handler", Options{Config: testConfig(), Subdomain: "sub"}},
		{"missing subdomain", Options{Config: testConfig(), Handler: http.NotFoundHandler()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil, want validation error")
			}
		})
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	m := newTestManager(t, func(string) (Session, error) { return nil, fmt.Errorf("nope") })

	got := m.initialBackoff()
	if got != time.Second {
		t.Fatalf("initialBackoff() = %v, want 1s", got)
	}

	for _, want := range []time.Duration{2, 4, 8, 16, 32, 60, 60} {
		got = m.nextBackoff(got)
		if got != want*time.Second {
			t.Fatalf("nextBackoff() = %v, want %vs", got, want)
		}
	}
}
