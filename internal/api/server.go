package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/bridge"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/dispatch"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
	"github.com/nerrad567/gray-logic-smartthings/internal/webhook"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// changeBuffer is the directory subscription buffer for the WebSocket
// relay. Slow clients drop messages rather than block updates.
const changeBuffer = 256

// CommandDispatcher sends device commands and scene executions to the
// cloud. Satisfied by *dispatch.Dispatcher.
type CommandDispatcher interface {
	Send(ctx context.Context, req dispatch.Request) error
	ExecuteScene(ctx context.Context, sceneID string) error
	Stats() dispatch.Stats
}

// BridgeControl is the slice of the bridge coordinator the API exposes:
// aggregated status and the manual refresh trigger. Satisfied by
// *bridge.Bridge.
type BridgeControl interface {
	Status() bridge.Status
	ForceRefresh(ctx context.Context) error
}

// Catalog serves the room and scene lists cached by the reconciler.
// Satisfied by *reconcile.Reconciler.
type Catalog interface {
	Rooms() []smartthings.Room
	Scenes() []smartthings.Scene
}

// WebhookIngress is the cloud webhook endpoint mounted on this listener.
// Satisfied by *webhook.Ingestor.
type WebhookIngress interface {
	Handler() http.Handler
	Stats() webhook.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Directory  *device.Directory
	History    device.HistoryRecorder
	Dispatcher CommandDispatcher
	Bridge     BridgeControl
	Catalog    Catalog

	// Webhook, when set, mounts the cloud event endpoint under
	// WebhookPrefix on this listener so the tunnel and local clients
	// share one port.
	Webhook       WebhookIngress
	WebhookPrefix string

	Version string
}

// Server is the bridge's local HTTP and WebSocket server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	logger        *logging.Logger
	directory     *device.Directory
	history       device.HistoryRecorder
	dispatcher    CommandDispatcher
	bridge        BridgeControl
	catalog       Catalog
	webhook       WebhookIngress
	webhookPrefix string
	version       string
	startedAt     time.Time
	server        *http.Server
	hub           *Hub
	cancel        context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, directory)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("device directory is required")
	}
	// Dispatcher is optional — commands return 503 without it, but
	// reads and the WebSocket relay still function.

	return &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		logger:        deps.Logger,
		directory:     deps.Directory,
		history:       deps.History,
		dispatcher:    deps.Dispatcher,
		bridge:        deps.Bridge,
		catalog:       deps.Catalog,
		webhook:       deps.Webhook,
		webhookPrefix: deps.WebhookPrefix,
		version:       deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to the
// device directory for real-time WebSocket broadcast, and launches the
// HTTP listener in a background goroutine. The server is stopped with
// Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.startedAt = time.Now().UTC()

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Relay directory changes to WebSocket subscribers.
	go s.relayChanges(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, change relay)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
