package notify

import "errors"

var (
	// ErrListenFailed is returned when the listener cannot bind.
	ErrListenFailed = errors.New("notify: listen failed")

	// ErrNoHandler is returned by New without a handler.
	ErrNoHandler = errors.New("notify: handler is required")
)
