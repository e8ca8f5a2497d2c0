package realtime

import "errors"

var (
	ErrSubscriptionLimit   = errors.New("subscription limit reached")
	ErrInvalidFilter       = errors.New("invalid source pattern")
	ErrSubscriptionMissing = errors.New("subscription not found")
)
