package watcher

import "errors"

var (
	ErrMultipleRelays      = errors.New("message hash is relayed more than once")
	ErrEndpointUnavailable = errors.New("chain endpoint request failed")
	ErrSubscriptionFailed  = errors.New("relay subscription failed")
	ErrUnknownDomain       = errors.New("unknown domain")

	errSubscriptionClosed = errors.New("subscription closed by endpoint")
)
