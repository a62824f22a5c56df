// Package subscription manages the cloud-side event registrations that
// point SmartThings at the bridge's public webhook URL.
//
// The manager owns one registration set per run: a per-device
// subscription for every device the directory knows plus a
// location-wide catch-all. Ensure is idempotent — called with the URL
// the set is already registered against it does nothing; called with a
// new URL (tunnel re-dial) it deletes the stale set before creating the
// replacement, so orphaned registrations never accumulate on the cloud
// side. A renewal ticker re-registers ahead of the cloud's assumed
// validity window.
//
// State machine:
//
//	Unregistered → Registering → Active → (renew fail | URL change) → Registering
//
// terminating only through Shutdown (Active → Deleting → Unregistered).
// Registration failure is reported upward but never blocks polling; the
// reconciliation loop bounds the staleness window in the meantime.
package subscription
