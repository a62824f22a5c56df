// Package webhook is the HTTP ingestor behind the tunnel: the endpoint
// SmartThings pushes events to.
//
// One POST route, {prefix}/{hook_id}, speaking the SmartApp lifecycle
// contract: PING is answered with its challenge, CONFIRMATION is
// acknowledged (and the confirmation URL fetched best-effort),
// CONFIGURATION returns the static initialize document, and EVENT
// envelopes are parsed into attribute updates for the device directory.
//
// The cloud retries undelivered webhooks aggressively, so the handler
// acknowledges with 200 regardless of payload validity — a malformed
// body is logged and counted, never bounced back into a retry storm.
// Duplicate deliveries are dropped by content fingerprint within a
// short window; the directory application itself is in-memory and runs
// before the ack, keeping the response comfortably sub-second.
package webhook
