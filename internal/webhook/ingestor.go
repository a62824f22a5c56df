package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
)

// Directory is the slice of the device directory the ingestor writes to.
type Directory interface {
	ApplyBatch(ctx context.Context, updates []device.Update) int
}

// Logger is the logging interface used by the Ingestor.
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

// Ingestor handles SmartApp lifecycle webhooks for one installed hook id
// and feeds parsed device events into the directory.
type Ingestor struct {
	cfg       config.WebhookConfig
	hookID    string
	directory Directory
	dedup     *dedupCache
	logger    Logger

	// confirmClient fetches CONFIRMATION urls; swapped in tests.
	confirmClient *http.Client

	// ctx bounds background confirmation fetches; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	statsMu sync.Mutex
	stats   Stats
}

// New creates an Ingestor for the given hook id.
func New(cfg config.WebhookConfig, hookID string, directory Directory) (*Ingestor, error) {
	if hookID == "" {
		return nil, fmt.Errorf("webhook: hook id is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("webhook: directory is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		cfg:           cfg,
		hookID:        hookID,
		directory:     directory,
		dedup:         newDedupCache(cfg.DedupWindowDuration()),
		logger:        noopLogger{},
		confirmClient: &http.Client{Timeout: 10 * time.Second},
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Close cancels any in-flight confirmation fetch. The handler itself is
// torn down with the server that mounts it.
func (i *Ingestor) Close() {
	i.cancel()
}

// SetLogger sets the logger. Must be called before the handler serves.
func (i *Ingestor) SetLogger(logger Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// Handler returns the HTTP handler served behind the tunnel. One route:
// POST {prefix}/{hook_id}.
func (i *Ingestor) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post(i.cfg.PathPrefix+"/{hookID}", i.handle)
	return r
}

// Stats returns a copy of the running counters.
func (i *Ingestor) Stats() Stats {
	i.statsMu.Lock()
	defer i.statsMu.Unlock()
	return i.stats
}

func (i *Ingestor) handle(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "hookID") != i.hookID {
		i.logger.Warn("webhook for unknown hook id", "path", r.URL.Path)
		http.NotFound(w, r)
		return
	}

	i.count(func(s *Stats) { s.Received++ })

	if i.cfg.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(i.cfg.MaxBodySize))
	}

	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		// Never bounce a bad body back into the cloud's retry loop.
		i.count(func(s *Stats) { s.Malformed++ })
		i.logger.Warn("discarding webhook payload",
			"error", fmt.Errorf("%w: %w", ErrMalformedPayload, err))
		writeJSON(w, map[string]string{"status": "received"})
		return
	}

	switch env.Lifecycle {
	case LifecyclePing:
		i.handlePing(w, env)
	case LifecycleConfirmation:
		i.handleConfirmation(w, env)
	case LifecycleConfiguration:
		i.handleConfiguration(w)
	case LifecycleEvent:
		i.handleEvent(r.Context(), w, env)
	default:
		i.logger.Debug("unhandled lifecycle", "lifecycle", env.Lifecycle)
		writeJSON(w, map[string]string{"status": "received"})
	}
}

func (i *Ingestor) handlePing(w http.ResponseWriter, env envelope) {
	challenge := ""
	if env.PingData != nil {
		challenge = env.PingData.Challenge
	}
	i.logger.Debug("answering ping", "challenge", challenge)
	writeJSON(w, map[string]any{"pingData": map[string]string{"challenge": challenge}})
}

// handleConfirmation acknowledges app registration. The cloud expects
// the confirmation URL to be visited to prove ownership of the target;
// done in the background so the ack stays fast.
func (i *Ingestor) handleConfirmation(w http.ResponseWriter, env envelope) {
	if env.ConfirmationData != nil && env.ConfirmationData.ConfirmationURL != "" {
		url := env.ConfirmationData.ConfirmationURL
		i.logger.Info("confirming app registration", "app_id", env.ConfirmationData.AppID)
		go func() {
			req, err := http.NewRequestWithContext(i.ctx, http.MethodGet, url, nil)
			if err != nil {
				i.logger.Warn("confirmation fetch failed", "error", err)
				return
			}
			resp, err := i.confirmClient.Do(req)
			if err != nil {
				i.logger.Warn("confirmation fetch failed", "error", err)
				return
			}
			resp.Body.Close()
		}()
	}
	writeJSON(w, map[string]string{"status": "confirmed"})
}

// handleConfiguration returns a static initialize document; the bridge
// has no configuration pages.
func (i *Ingestor) handleConfiguration(w http.ResponseWriter) {
	writeJSON(w, map[string]any{
		"configurationData": map[string]any{
			"initialize": map[string]any{
				"name":        "Gray Logic SmartThings Bridge",
				"description": "Mirrors SmartThings devices into Gray Logic",
				"id":          "bridge",
				"permissions": []string{"r:devices:*", "x:devices:*", "r:locations:*"},
				"firstPageId": "1",
			},
		},
	})
}

func (i *Ingestor) handleEvent(ctx context.Context, w http.ResponseWriter, env envelope) {
	received := time.Now().UTC()

	var updates []device.Update
	if env.EventData != nil {
		for _, rec := range env.EventData.Events {
			update, ok := rec.normalise()
			if !ok {
				continue
			}
			i.count(func(s *Stats) { s.Events++ })

			if i.dedup.Seen(fingerprint(update)) {
				i.count(func(s *Stats) { s.Deduped++ })
				i.logger.Debug("duplicate event suppressed",
					"device_id", update.DeviceID, "attribute", update.Attribute)
				continue
			}
			if update.Timestamp.IsZero() {
				update.Timestamp = received
			}
			updates = append(updates, update)
		}
	}

	if len(updates) > 0 {
		applied := i.directory.ApplyBatch(ctx, updates)
		i.count(func(s *Stats) { s.Applied += int64(applied) })
		i.logger.Debug("event batch applied", "events", len(updates), "changes", applied)
	}

	writeJSON(w, map[string]any{"eventData": map[string]any{}})
}

func (i *Ingestor) count(fn func(*Stats)) {
	i.statsMu.Lock()
	fn(&i.stats)
	i.statsMu.Unlock()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
