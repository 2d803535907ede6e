package datasync

import "errors"

var (
	// ErrNoSeedNodes is returned when requesting the initial data without
	// any seed node to ask.
	ErrNoSeedNodes = errors.New("no seed nodes to request data from")
	// ErrSeedNodesUnreachable is returned when none of the seed nodes could
	// be sent the initial data request.
	ErrSeedNodesUnreachable = errors.New("all seed nodes are unreachable")
	ErrInvalidMaxResponseSize = errors.New(
		"max response size must exceed the response header and fit an envelope",
	)
	ErrInvalidRequestTimeout = errors.New("request timeout must be positive")
	// ErrRequestNotPending is returned when waiting for a request that was
	// never sent or already dropped from the pending ones.
	ErrRequestNotPending = errors.New("request is not pending")
)
