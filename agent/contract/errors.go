package contract

import "errors"

var (
	// ErrTransport covers provider and store connectivity failures: non-2xx
	// statuses, malformed payloads, timeouts. Never retried inside the loop.
	ErrTransport = errors.New("transport failure")

	// ErrValidation covers bad or missing tool arguments and malformed input.
	ErrValidation = errors.New("validation failed")

	ErrUnsupportedRegion = errors.New("delivery region not supported")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrNotFound          = errors.New("not found")
)
