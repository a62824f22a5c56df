// Package tunnel establishes and supervises the public ingress for
// webhook delivery.
//
// The bridge sits behind NAT, so the cloud cannot reach it directly.
// The Manager opens a localtunnel session that forwards a public HTTPS
// URL to the bridge's webhook handler, watches the session for death,
// and re-dials with exponential backoff when it drops. Every transition
// to a live session reports the (possibly changed) public URL through
// the OnURLChange callback so the subscription layer can re-register —
// a subscription pointing at a stale URL silently stops delivering
// events.
//
// Tunnel failure is never fatal: the bridge degrades to poll-only mode
// while the supervisor keeps retrying at the backoff cap.
package tunnel
