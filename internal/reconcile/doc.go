// Package reconcile is the safety net under the event stream: a full
// poll of the cloud that repairs whatever webhooks missed.
//
// Each cycle refreshes the device list (shapes, rooms, scenes) and then
// fetches every device's status, feeding the values into the directory
// as poll-sourced updates. The newer-wins rule makes the poll harmless
// when events already delivered the same values, and corrective when a
// tunnel outage or dropped webhook left the directory behind.
//
// Cycles run at a fixed interval and on demand via ForceRefresh; both
// paths are serialised so two polls never interleave. Rate-limit
// responses from the cloud pause the cycle for the advertised delay
// rather than abandoning it. A device whose status cannot be fetched is
// marked stale, or online/offline when the health endpoint lookup is
// enabled.
package reconcile
