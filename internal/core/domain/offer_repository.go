package domain

import "context"

// OpenOfferRepository is the abstraction for any kind of database intended
// to persist the offers created by this node.
type OpenOfferRepository interface {
	// AddOpenOffer adds a new open offer. It fails if one with the same
	// offer id already exists.
	AddOpenOffer(ctx context.Context, offer OpenOffer) error
	// GetOpenOffer returns the open offer with the given offer id.
	GetOpenOffer(ctx context.Context, offerID string) (*OpenOffer, error)
	// GetAllOpenOffers returns all the stored open offers.
	GetAllOpenOffers(ctx context.Context) ([]OpenOffer, error)
	// UpdateOpenOffer allows to commit multiple changes to the same open
	// offer in a transactional way.
	UpdateOpenOffer(
		ctx context.Context, offerID string,
		updateFn func(o *OpenOffer) (*OpenOffer, error),
	) error
	Close()
}
