package booking

import "errors"

// Domain errors surfaced to the presentation layer. Validation errors are
// terminal for the request; ErrSlotTaken and ErrSlotNoLongerAvailable hint
// that the caller should re-query availability and let the user pick again;
// ErrStoreUnavailable is transient and retryable with backoff by the caller.
var (
	ErrInvalidServices       = errors.New("invalid service selection")
	ErrInvalidDate           = errors.New("invalid date or time")
	ErrSlotTaken             = errors.New("slot already taken")
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
	ErrIllegalTransition     = errors.New("illegal status transition")
	ErrUnauthorized          = errors.New("actor not permitted")
	ErrNotFound              = errors.New("appointment not found")
	ErrStoreUnavailable      = errors.New("store unavailable")
)
