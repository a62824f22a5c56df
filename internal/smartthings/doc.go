// Package smartthings is the REST client for the SmartThings cloud API.
//
// It wraps the handful of endpoints the bridge consumes: device listing and
// status, device health, commands, scenes, rooms, locations and the
// installed-app subscription API. Every call carries the account's bearer
// token, passes through a client-side rate limiter, and maps cloud failures
// onto the package's sentinel errors so callers can branch with errors.Is:
//
//	status, err := client.GetDeviceStatus(ctx, id)
//	if errors.Is(err, smartthings.ErrRateLimited) {
//	    // back off per RetryAfterFrom(err)
//	}
//
// A 401 is terminal (the token is bad or revoked); a 429 carries the
// cloud-provided retry delay; everything else is a wrapped transport or
// status error.
//
// Thread Safety: the client is safe for concurrent use.
package smartthings
