package smartthings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
)

// limiterBurst allows short bursts (a poll cycle touching several
// devices back to back) while the sustained rate stays at the
// configured requests-per-minute.
const limiterBurst = 10

// Logger is the logging interface the client uses.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client is the SmartThings REST API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  Logger
}

// New creates a client from the smartthings config section.
func New(cfg config.SmartThingsConfig) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm < 1 {
		rpm = 1
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), limiterBurst),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger. Must be called before the first request;
// the field is not synchronised.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// ListLocations returns all locations the token can see. Also used as
// the startup token validation call: ErrAuthFailure here is fatal.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var env itemsEnvelope[Location]
	if err := c.get(ctx, "/locations", &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// GetLocation returns one location by id.
func (c *Client) GetLocation(ctx context.Context, locationID string) (*Location, error) {
	var loc Location
	if err := c.get(ctx, "/locations/"+url.PathEscape(locationID), &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// ListRooms returns the rooms of a location.
func (c *Client) ListRooms(ctx context.Context, locationID string) ([]Room, error) {
	var env itemsEnvelope[Room]
	path := "/locations/" + url.PathEscape(locationID) + "/rooms"
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// ListDevices returns the devices of a location.
func (c *Client) ListDevices(ctx context.Context, locationID string) ([]DeviceInfo, error) {
	var env itemsEnvelope[DeviceInfo]
	path := "/devices"
	if locationID != "" {
		path += "?locationId=" + url.QueryEscape(locationID)
	}
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// GetDevice returns one device's identity and shape.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.get(ctx, "/devices/"+url.PathEscape(deviceID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetDeviceStatus returns the full attribute status of a device.
func (c *Client) GetDeviceStatus(ctx context.Context, deviceID string) (*DeviceStatus, error) {
	var status DeviceStatus
	path := "/devices/" + url.PathEscape(deviceID) + "/status"
	if err := c.get(ctx, path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetDeviceHealth returns the cloud's reachability verdict for a device.
func (c *Client) GetDeviceHealth(ctx context.Context, deviceID string) (*DeviceHealth, error) {
	var health DeviceHealth
	path := "/devices/" + url.PathEscape(deviceID) + "/health"
	if err := c.get(ctx, path, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// SendCommands posts a command envelope to a device. The cloud accepts
// the envelope as a whole; partial acceptance is reported as an error.
func (c *Client) SendCommands(ctx context.Context, deviceID string, commands []Command) error {
	body := map[string]any{"commands": commands}
	path := "/devices/" + url.PathEscape(deviceID) + "/commands"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// ListScenes returns the scenes of a location.
func (c *Client) ListScenes(ctx context.Context, locationID string) ([]Scene, error) {
	var env itemsEnvelope[Scene]
	path := "/scenes"
	if locationID != "" {
		path += "?locationId=" + url.QueryEscape(locationID)
	}
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// ExecuteScene runs a scene by id.
func (c *Client) ExecuteScene(ctx context.Context, sceneID string) error {
	path := "/scenes/" + url.PathEscape(sceneID) + "/execute"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// CreateSubscription registers one event subscription under the
// installed app. An empty DeviceID produces a location-wide
// subscription; otherwise the subscription targets the device's main
// component with wildcard capability/attribute unless narrowed.
func (c *Client) CreateSubscription(ctx context.Context, appID string, req SubscriptionRequest) (*Subscription, error) {
	capability := req.Capability
	if capability == "" {
		capability = "*"
	}
	attribute := req.Attribute
	if attribute == "" {
		attribute = "*"
	}

	var body map[string]any
	if req.DeviceID != "" {
		body = map[string]any{
			"sourceType": "DEVICE",
			"device": map[string]any{
				"deviceId":        req.DeviceID,
				"componentId":     "main",
				"capability":      capability,
				"attribute":       attribute,
				"stateChangeOnly": true,
			},
		}
	} else {
		body = map[string]any{
			"sourceType": "CAPABILITY",
			"capability": map[string]any{
				"locationId":      req.LocationID,
				"capability":      capability,
				"attribute":       attribute,
				"stateChangeOnly": true,
			},
		}
	}

	var sub Subscription
	path := "/installedapps/" + url.PathEscape(appID) + "/subscriptions"
	if err := c.do(ctx, http.MethodPost, path, body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptions returns the installed app's active subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context, appID string) ([]Subscription, error) {
	var env itemsEnvelope[Subscription]
	path := "/installedapps/" + url.PathEscape(appID) + "/subscriptions"
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// DeleteSubscription removes one subscription. Deleting a subscription
// that is already gone returns ErrNotFound, which callers treat as
// success.
func (c *Client) DeleteSubscription(ctx context.Context, appID, subscriptionID string) error {
	path := "/installedapps/" + url.PathEscape(appID) + "/subscriptions/" + url.PathEscape(subscriptionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// get issues a GET request and decodes the response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// do issues one rate-limited, authenticated request and maps the
// response status onto the package's error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encoding body: %w", ErrRequestFailed, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("smartthings request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthFailure
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256)) //nolint:errcheck // best-effort diagnostic
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrRequestFailed, method, path, resp.StatusCode, snippet)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrRequestFailed, err)
	}
	return nil
}

// defaultRetryAfter is used when a 429 carries no usable Retry-After.
const defaultRetryAfter = 30 * time.Second

// parseRetryAfter reads a Retry-After header in delta-seconds form.
// HTTP-date form is rare on this API and falls back to the default.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}
