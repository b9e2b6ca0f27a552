package market

import "errors"

// ErrFeedUnavailable signals that a live price or depth refresh failed:
// transport down, malformed payload, or an empty book side. Callers keep
// serving the last known data and retry on the next tick.
var ErrFeedUnavailable = errors.New("feed unavailable")
