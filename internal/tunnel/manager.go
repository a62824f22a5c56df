package tunnel

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/localtunnel/go-localtunnel"

	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
)

// State is the liveness state of the tunnel session.
type State string

// Session states.
const (
	StateStarting State = "starting"
	StateLive     State = "live"
	StateDead     State = "dead"
	StateStopped  State = "stopped"
)

// Session is the tunnel transport: a net.Listener whose accepted
// connections arrive through a public URL. Satisfied by
// *localtunnel.Listener; tests substitute their own.
type Session interface {
	net.Listener
	URL() string
}

// ListenFunc dials a new tunnel session. Injectable for tests.
type ListenFunc func(subdomain string) (Session, error)

// Logger is the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is a point-in-time view of the tunnel for health reporting.
type Status struct {
	State     State     `json:"state"`
	URL       string    `json:"url,omitempty"`
	Subdomain string    `json:"subdomain"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Restarts  uint64    `json:"restarts"`
}

// Manager owns the tunnel session lifecycle: dial, serve, detect death,
// re-dial with backoff. Exactly one session is live at a time; dialling
// a new one implies the previous listener is closed.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	cfg       config.TunnelConfig
	subdomain string
	handler   http.Handler
	listen    ListenFunc
	logger    Logger

	mu        sync.RWMutex
	state     State
	session   Session
	startedAt time.Time
	restarts  uint64

	onURLChange func(publicURL string)

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Options configures a Manager.
type Options struct {
	// Config is the tunnel section of the bridge configuration.
	Config config.TunnelConfig

	// Subdomain pins the public hostname. Stable across restarts so
	// the cloud-side registration survives a bridge restart.
	Subdomain string

	// Handler serves the HTTP requests arriving through the tunnel
	// (the webhook ingestor).
	Handler http.Handler

	// Listen is optional; defaults to dialling the configured
	// localtunnel endpoint.
	Listen ListenFunc

	// Logger is optional.
	Logger Logger
}

// New creates a Manager. Call Start to open the first session.
func New(opts Options) (*Manager, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("tunnel: handler is required")
	}
	if opts.Subdomain == "" {
		return nil, fmt.Errorf("tunnel: subdomain is required")
	}

	m := &Manager{
		cfg:       opts.Config,
		subdomain: opts.Subdomain,
		handler:   opts.Handler,
		listen:    opts.Listen,
		logger:    opts.Logger,
		state:     StateStarting,
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.listen == nil {
		m.listen = func(subdomain string) (Session, error) {
			return localtunnel.Listen(localtunnel.Options{
				Subdomain:      subdomain,
				BaseURL:        opts.Config.BaseURL,
				MaxConnections: opts.Config.MaxConnections,
			})
		}
	}
	return m, nil
}

// OnURLChange registers the callback invoked whenever a session comes
// up, with its public URL. Fires for the first session and for every
// re-dial, even when the URL happens to be unchanged — the receiver's
// registration path is idempotent. Must be set before Start.
func (m *Manager) OnURLChange(fn func(publicURL string)) {
	m.onURLChange = fn
}

// Start dials the first session, trying up to the configured attempt
// budget with exponential backoff. On success the public URL is
// returned and the supervision goroutine takes over. On failure it
// returns ErrTunnelUnavailable — the supervisor still runs and keeps
// retrying, so a late-arriving tunnel self-heals.
func (m *Manager) Start(ctx context.Context) (string, error) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	session, err := m.dial(m.ctx, m.cfg.StartAttempts)
	if err != nil {
		m.logger.Warn("tunnel unavailable, continuing in poll-only mode",
			"subdomain", m.subdomain, "error", err)
		m.setDead()
		m.wg.Add(1)
		go m.supervise(nil)
		return "", fmt.Errorf("%w: %w", ErrTunnelUnavailable, err)
	}

	url := session.URL()
	m.setLive(session)
	m.wg.Add(1)
	go m.supervise(session)

	m.logger.Info("tunnel established", "url", url, "subdomain", m.subdomain)
	return url, nil
}

// Stop tears down the live session and stops the supervisor. Safe to
// call on every shutdown path, including after a failed Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}

		m.mu.Lock()
		session := m.session
		m.session = nil
		m.state = StateStopped
		m.mu.Unlock()

		if session != nil {
			if err := session.Close(); err != nil {
				m.logger.Debug("closing tunnel session", "error", err)
			}
		}
		m.wg.Wait()
		m.logger.Info("tunnel stopped")
	})
}

// URL returns the current public URL, or empty when no session is live.
func (m *Manager) URL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateLive || m.session == nil {
		return ""
	}
	return m.session.URL()
}

// Status returns the current session state for health reporting.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		State:     m.state,
		Subdomain: m.subdomain,
		StartedAt: m.startedAt,
		Restarts:  m.restarts,
	}
	if m.state == StateLive && m.session != nil {
		s.URL = m.session.URL()
	}
	return s
}

// Live reports whether a session is currently up.
func (m *Manager) Live() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateLive
}

// supervise serves the current session and re-dials whenever it dies.
// Runs until the manager context is cancelled. A nil initial session
// (failed Start) goes straight to the redial loop.
func (m *Manager) supervise(session Session) {
	defer m.wg.Done()

	for {
		if session != nil {
			err := http.Serve(session, m.handler) //nolint:gosec // timeouts enforced by the webhook handler; ingress is tunnel-scoped
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Warn("tunnel session died", "error", err)
			m.setDead()
			session = nil
		}

		next, err := m.redial()
		if err != nil {
			// Context cancelled; shutdown.
			return
		}

		url := next.URL()
		m.setLive(next)
		m.mu.Lock()
		m.restarts++
		m.mu.Unlock()
		m.logger.Info("tunnel re-established", "url", url)

		if m.onURLChange != nil {
			m.onURLChange(url)
		}
		session = next
	}
}

// redial dials until a session comes up or the context is cancelled,
// backing off exponentially up to the configured cap.
func (m *Manager) redial() (Session, error) {
	backoff := m.initialBackoff()
	for {
		session, err := m.listen(m.subdomain)
		if err == nil {
			return session, nil
		}
		m.logger.Debug("tunnel dial failed, backing off",
			"backoff", backoff.String(), "error", err)

		select {
		case <-m.ctx.Done():
			return nil, m.ctx.Err()
		case <-time.After(backoff):
		}
		backoff = m.nextBackoff(backoff)
	}
}

// dial makes up to attempts dials with backoff between them. Used only
// by Start; the supervisor's redial loop is unbounded.
func (m *Manager) dial(ctx context.Context, attempts int) (Session, error) {
	if attempts < 1 {
		attempts = 1
	}

	backoff := m.initialBackoff()
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = m.nextBackoff(backoff)
		}

		session, err := m.listen(m.subdomain)
		if err == nil {
			return session, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (m *Manager) initialBackoff() time.Duration {
	d := time.Duration(m.cfg.InitialBackoff) * time.Second
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (m *Manager) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if limit := time.Duration(m.cfg.MaxBackoff) * time.Second; limit > 0 && next > limit {
		next = limit
	}
	return next
}

func (m *Manager) setLive(session Session) {
	m.mu.Lock()
	m.session = session
	m.state = StateLive
	m.startedAt = time.Now().UTC()
	m.mu.Unlock()
}

func (m *Manager) setDead() {
	m.mu.Lock()
	if m.state != StateStopped {
		m.state = StateDead
	}
	m.session = nil
	m.mu.Unlock()
}
