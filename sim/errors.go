package sim

import "errors"

var (
	// ErrConfiguration marks errors caused by invalid catalogs, configuration
	// or arguments. Use errors.Is to detect it.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidState marks operations requested in a mode that does not
	// support them, such as reading history outside cumulative evolution.
	ErrInvalidState = errors.New("invalid state")
)
