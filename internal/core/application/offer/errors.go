package offer

import "errors"

var (
	// ErrMissingNodeKey is returned if the key for signing offers is invalid.
	ErrMissingNodeKey = errors.New("missing or invalid node key")
	// ErrOfferNotInBook is returned if no offer with the given id is found
	// in the shared store.
	ErrOfferNotInBook = errors.New("offer not found in offer book")
)
