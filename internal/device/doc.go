// Package device holds the canonical in-memory model of SmartThings
// devices and their attribute values.
//
// The Directory is the single piece of shared state the bridge mutates
// from multiple goroutines: webhook events, reconciliation polls and
// optimistic command results all converge on ApplyUpdate/ApplyBatch, where
// one newer-wins rule resolves conflicts. Readers get deep-copied
// snapshots; subscribers get non-blocking change notifications.
//
// The package also persists the directory shape (ShapeRepository) so the
// API can answer straight after a restart, and keeps a local attribute
// audit trail (HistoryRecorder) that works even when the time-series
// database is down.
package device
