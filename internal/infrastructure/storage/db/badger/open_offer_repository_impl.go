package dbbadger

import (
	"context"
	"sort"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type openOfferRepositoryImpl struct {
	store *badgerhold.Store
}

func NewOpenOfferRepositoryImpl(store *badgerhold.Store) domain.OpenOfferRepository {
	return &openOfferRepositoryImpl{store}
}

func (r *openOfferRepositoryImpl) AddOpenOffer(
	_ context.Context, offer domain.OpenOffer,
) error {
	if err := r.store.Insert(offer.Offer.ID, offer); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrOpenOfferAlreadyExists
		}
		return err
	}
	return nil
}

func (r *openOfferRepositoryImpl) GetOpenOffer(
	_ context.Context, offerID string,
) (*domain.OpenOffer, error) {
	var offer domain.OpenOffer
	if err := r.store.Get(offerID, &offer); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrOpenOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

func (r *openOfferRepositoryImpl) GetAllOpenOffers(
	_ context.Context,
) ([]domain.OpenOffer, error) {
	var offers []domain.OpenOffer
	if err := r.store.Find(&offers, nil); err != nil {
		return nil, err
	}
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Offer.CreatedAt < offers[j].Offer.CreatedAt
	})
	return offers, nil
}

func (r *openOfferRepositoryImpl) UpdateOpenOffer(
	ctx context.Context, offerID string,
	updateFn func(o *domain.OpenOffer) (*domain.OpenOffer, error),
) error {
	offer, err := r.GetOpenOffer(ctx, offerID)
	if err != nil {
		return err
	}

	updatedOffer, err := updateFn(offer)
	if err != nil {
		return err
	}

	return r.store.Update(offerID, *updatedOffer)
}

// Close is a no-op, the store is closed by the repo manager.
func (r *openOfferRepositoryImpl) Close() {}
