package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/device"
)

// sweepThreshold is the entry count above which Seen sweeps expired
// fingerprints before inserting.
const sweepThreshold = 256

// dedupCache suppresses redelivered events by content fingerprint
// within a fixed window. The cloud retries webhooks it believes
// undelivered, so the same event can arrive more than once even when
// the first delivery succeeded.
type dedupCache struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func newDedupCache(window time.Duration) *dedupCache {
	return &dedupCache{
		window:  window,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// Seen reports whether the fingerprint was recorded within the window,
// recording it either way. A zero window disables suppression.
func (c *dedupCache) Seen(fingerprint string) bool {
	if c.window <= 0 {
		return false
	}

	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > sweepThreshold {
		for fp, at := range c.entries {
			if now.Sub(at) > c.window {
				delete(c.entries, fp)
			}
		}
	}

	at, ok := c.entries[fingerprint]
	c.entries[fingerprint] = now
	return ok && now.Sub(at) <= c.window
}

// fingerprint hashes the identifying content of an update: device,
// attribute address, value and event timestamp. Two deliveries of the
// same cloud event collide; a genuine repeat state change carries a new
// timestamp and does not.
func fingerprint(u device.Update) string {
	value, err := json.Marshal(u.Value)
	if err != nil {
		value = fmt.Appendf(nil, "%v", u.Value)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%d",
		u.DeviceID, u.Component, u.Capability, u.Attribute, value, u.Timestamp.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}
