package fetcher

import "errors"

var (
	// ErrInvalidArgument is returned for malformed command arguments.
	ErrInvalidArgument = errors.New("fetcher: invalid argument")

	// ErrNoLocationSource is returned by New when neither sources nor a
	// strategy factory were provided.
	ErrNoLocationSource = errors.New("fetcher: no location source configured")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("fetcher: controller closed")
)
