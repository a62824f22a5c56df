package webhook

import "errors"

// ErrMalformedPayload marks an envelope that could not be parsed. The
// request is still acknowledged with 200; the error only feeds logs and
// counters.
var ErrMalformedPayload = errors.New("webhook: malformed payload")
