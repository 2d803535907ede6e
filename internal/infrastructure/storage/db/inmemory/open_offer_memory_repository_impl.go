package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

type openOfferRepositoryImpl struct {
	locker *sync.RWMutex
	offers map[string]domain.OpenOffer
}

// NewOpenOfferRepositoryImpl returns a new inmemory OpenOfferRepository
// implementation.
func NewOpenOfferRepositoryImpl() domain.OpenOfferRepository {
	return &openOfferRepositoryImpl{
		locker: &sync.RWMutex{},
		offers: make(map[string]domain.OpenOffer),
	}
}

func (r *openOfferRepositoryImpl) AddOpenOffer(
	_ context.Context, offer domain.OpenOffer,
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	if _, ok := r.offers[offer.Offer.ID]; ok {
		return domain.ErrOpenOfferAlreadyExists
	}
	r.offers[offer.Offer.ID] = offer
	return nil
}

func (r *openOfferRepositoryImpl) GetOpenOffer(
	_ context.Context, offerID string,
) (*domain.OpenOffer, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	offer, ok := r.offers[offerID]
	if !ok {
		return nil, domain.ErrOpenOfferNotFound
	}
	return &offer, nil
}

func (r *openOfferRepositoryImpl) GetAllOpenOffers(
	_ context.Context,
) ([]domain.OpenOffer, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	offers := make([]domain.OpenOffer, 0, len(r.offers))
	for _, o := range r.offers {
		offers = append(offers, o)
	}
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Offer.CreatedAt < offers[j].Offer.CreatedAt
	})
	return offers, nil
}

func (r *openOfferRepositoryImpl) UpdateOpenOffer(
	_ context.Context, offerID string,
	updateFn func(o *domain.OpenOffer) (*domain.OpenOffer, error),
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	offer, ok := r.offers[offerID]
	if !ok {
		return domain.ErrOpenOfferNotFound
	}
	updatedOffer, err := updateFn(&offer)
	if err != nil {
		return err
	}
	r.offers[offerID] = *updatedOffer
	return nil
}

func (r *openOfferRepositoryImpl) Close() {}
