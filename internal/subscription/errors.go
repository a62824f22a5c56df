package subscription

import "errors"

var (
	// ErrSubscriptionFailure is returned when the registration set
	// cannot be created. The next renewal tick or URL change retries.
	ErrSubscriptionFailure = errors.New("subscription: registration failed")

	// ErrNoTargetURL is returned when Ensure is called with an empty
	// URL, or renewal runs before any URL was ever registered.
	ErrNoTargetURL = errors.New("subscription: no target URL")
)
