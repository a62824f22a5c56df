package reconcile

import "errors"

var (
	// ErrSyncFailed is returned when a cycle cannot complete, typically
	// because the device list itself was unavailable.
	ErrSyncFailed = errors.New("reconcile: sync failed")

	// ErrSyncInProgress is returned by ForceRefresh when a cycle is
	// already running.
	ErrSyncInProgress = errors.New("reconcile: sync already in progress")
)
