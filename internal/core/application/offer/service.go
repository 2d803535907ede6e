package offer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

const defaultOfferTTL = 2 * time.Hour

// PlaceOfferArgs are the terms of a new offer.
type PlaceOfferArgs struct {
	Direction     domain.OfferDirection
	BaseAsset     string
	QuoteAsset    string
	Amount        decimal.Decimal
	MinAmount     decimal.Decimal
	Price         decimal.Decimal
	PaymentMethod string
}

// Service is the registry of the offers created by this node. Offers are
// published to the network as signed entries of the shared store, which
// makes up the offer book.
type Service struct {
	repoManager ports.RepoManager
	address     string
	nodeKey     ed25519.PrivateKey
	offerTTL    time.Duration

	// lock serializes the status changes of open offers.
	lock *sync.Mutex
	quit chan struct{}
}

func NewService(
	repoManager ports.RepoManager, address string,
	nodeKey ed25519.PrivateKey, offerTTL time.Duration,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if address == "" {
		return nil, fmt.Errorf("missing node address")
	}
	if len(nodeKey) != ed25519.PrivateKeySize {
		return nil, ErrMissingNodeKey
	}
	if offerTTL <= 0 {
		offerTTL = defaultOfferTTL
	}

	return &Service{
		repoManager: repoManager,
		address:     address,
		nodeKey:     nodeKey,
		offerTTL:    offerTTL,
		lock:        &sync.Mutex{},
		quit:        make(chan struct{}),
	}, nil
}

// Start republishes the open offers periodically so that they don't expire
// in the stores of the other peers.
func (s *Service) Start(ctx context.Context) error {
	if err := s.RefreshOffers(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(s.offerTTL / 2)
		defer ticker.Stop()

		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				if err := s.RefreshOffers(context.Background()); err != nil {
					log.WithError(err).Warn("failed to refresh open offers")
				}
			}
		}
	}()
	return nil
}

func (s *Service) Stop() {
	close(s.quit)
}

// PlaceOffer creates a new offer and publishes it to the offer book.
func (s *Service) PlaceOffer(
	ctx context.Context, args PlaceOfferArgs,
) (*domain.OpenOffer, error) {
	offer, err := domain.NewOffer(
		s.address, args.Direction, args.BaseAsset, args.QuoteAsset,
		args.Amount, args.MinAmount, args.Price, args.PaymentMethod,
	)
	if err != nil {
		return nil, err
	}
	offer.OwnerPubKey = s.nodeKey.Public().(ed25519.PublicKey)

	openOffer := domain.NewOpenOffer(*offer)
	if err := s.repoManager.OpenOfferRepository().AddOpenOffer(
		ctx, *openOffer,
	); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, *offer); err != nil {
		return nil, err
	}

	log.Infof(
		"placed offer %s: %s %s %s/%s at %s",
		offer.ID, offer.Direction, offer.Amount, offer.BaseAsset,
		offer.QuoteAsset, offer.Price,
	)
	return openOffer, nil
}

func (s *Service) GetOpenOffer(
	ctx context.Context, offerID string,
) (*domain.OpenOffer, error) {
	return s.repoManager.OpenOfferRepository().GetOpenOffer(ctx, offerID)
}

func (s *Service) ListOpenOffers(ctx context.Context) ([]domain.OpenOffer, error) {
	return s.repoManager.OpenOfferRepository().GetAllOpenOffers(ctx)
}

// ReserveOpenOffer binds the offer to the trade that is going to consume
// it.
func (s *Service) ReserveOpenOffer(
	ctx context.Context, offerID, tradeID string,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.repoManager.OpenOfferRepository().UpdateOpenOffer(
		ctx, offerID, func(o *domain.OpenOffer) (*domain.OpenOffer, error) {
			if err := o.Reserve(tradeID); err != nil {
				return nil, err
			}
			return o, nil
		},
	)
}

// ReleaseOpenOffer makes the offer available again, only if it's still
// reserved by the given trade.
func (s *Service) ReleaseOpenOffer(
	ctx context.Context, offerID, tradeID string,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.repoManager.OpenOfferRepository().UpdateOpenOffer(
		ctx, offerID, func(o *domain.OpenOffer) (*domain.OpenOffer, error) {
			if o.TradeID == tradeID {
				o.Release()
			}
			return o, nil
		},
	)
}

// CloseOpenOffer retires an offer consumed by a trade and removes it from
// the offer book. Closing an already closed offer is a no-op.
func (s *Service) CloseOpenOffer(offer domain.Offer) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx := context.Background()
	closed := false
	if err := s.repoManager.OpenOfferRepository().UpdateOpenOffer(
		ctx, offer.ID, func(o *domain.OpenOffer) (*domain.OpenOffer, error) {
			closed = o.Close()
			return o, nil
		},
	); err != nil {
		return err
	}
	if !closed {
		return nil
	}

	log.Infof("offer %s closed", offer.ID)
	return s.unpublish(ctx, offer)
}

// CancelOffer withdraws an offer not yet consumed by any trade.
func (s *Service) CancelOffer(ctx context.Context, offerID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	var offer domain.Offer
	if err := s.repoManager.OpenOfferRepository().UpdateOpenOffer(
		ctx, offerID, func(o *domain.OpenOffer) (*domain.OpenOffer, error) {
			if o.Status == domain.OpenOfferStatusReserved {
				return nil, domain.ErrOpenOfferNotAvailable
			}
			if err := o.Cancel(); err != nil {
				return nil, err
			}
			offer = o.Offer
			return o, nil
		},
	); err != nil {
		return err
	}

	log.Infof("offer %s canceled", offerID)
	return s.unpublish(ctx, offer)
}

// RefreshOffers republishes the offers not yet closed nor canceled with a
// greater sequence number.
func (s *Service) RefreshOffers(ctx context.Context) error {
	openOffers, err := s.ListOpenOffers(ctx)
	if err != nil {
		return err
	}

	count := 0
	for _, o := range openOffers {
		if o.Status != domain.OpenOfferStatusAvailable &&
			o.Status != domain.OpenOfferStatusReserved {
			continue
		}
		if err := s.publish(ctx, o.Offer); err != nil {
			return err
		}
		count++
	}
	if count > 0 {
		log.Debugf("refreshed %d open offers", count)
	}
	return nil
}

// GetOfferBook returns the offers found in the shared store, newest first.
// Removed entries, entries that can't be decoded and offers not owned by
// the signer of their entry are skipped.
func (s *Service) GetOfferBook(ctx context.Context) ([]domain.Offer, error) {
	entries, err := s.repoManager.PayloadStore().GetProtectedEntriesByType(
		ctx, domain.PayloadTypeOffer,
	)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	offers := make([]domain.Offer, 0, len(entries))
	for _, e := range entries {
		if e.Removed || e.IsExpired(now) {
			continue
		}
		offer, err := wire.DecodeOffer(e.Payload.Data)
		if err != nil {
			log.WithError(err).Debugf("skipping invalid offer entry %s", e.Key())
			continue
		}
		if !bytes.Equal(offer.OwnerPubKey, e.OwnerPubKey) {
			log.Debugf("skipping offer entry %s not signed by the offer owner", e.Key())
			continue
		}
		offers = append(offers, *offer)
	}
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].CreatedAt > offers[j].CreatedAt
	})
	return offers, nil
}

// GetOfferFromBook returns the offer with the given id from the offer book.
func (s *Service) GetOfferFromBook(
	ctx context.Context, offerID string,
) (*domain.Offer, error) {
	offers, err := s.GetOfferBook(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range offers {
		if o.ID == offerID {
			return &o, nil
		}
	}
	return nil, ErrOfferNotInBook
}

func (s *Service) publish(ctx context.Context, offer domain.Offer) error {
	return s.addEntry(ctx, offer, false)
}

// unpublish replaces the offer entry with a removal one, that peers
// receive with the next sync in place of the offer.
func (s *Service) unpublish(ctx context.Context, offer domain.Offer) error {
	return s.addEntry(ctx, offer, true)
}

func (s *Service) addEntry(
	ctx context.Context, offer domain.Offer, removed bool,
) error {
	entry, err := s.newEntry(offer)
	if err != nil {
		return err
	}
	entry.Removed = removed

	store := s.repoManager.PayloadStore()
	entries, err := store.GetProtectedEntriesByType(ctx, domain.PayloadTypeOffer)
	if err != nil {
		return err
	}
	key := entry.Key()
	for _, e := range entries {
		if e.Key() == key {
			entry.SequenceNumber = e.SequenceNumber + 1
			break
		}
	}
	entry.Sign(s.nodeKey)

	if _, err := store.AddProtectedEntry(ctx, *entry); err != nil {
		action := "publish"
		if removed {
			action = "remove"
		}
		return fmt.Errorf("failed to %s offer %s: %w", action, offer.ID, err)
	}
	return nil
}

func (s *Service) newEntry(offer domain.Offer) (*domain.ProtectedStorageEntry, error) {
	data, err := wire.EncodeOffer(offer)
	if err != nil {
		return nil, err
	}
	return &domain.ProtectedStorageEntry{
		Kind: domain.EntryKindPlain,
		Payload: domain.StoragePayload{
			Type: domain.PayloadTypeOffer,
			Data: data,
		},
		OwnerPubKey:    s.nodeKey.Public().(ed25519.PublicKey),
		SequenceNumber: 1,
		TTL:            s.offerTTL,
		CreationTime:   time.Now().UnixMilli(),
	}, nil
}
