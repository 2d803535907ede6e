package dbbadger

import (
	"context"
	"sort"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type tradeRepositoryImpl struct {
	store *badgerhold.Store
}

func NewTradeRepositoryImpl(store *badgerhold.Store) domain.TradeRepository {
	return &tradeRepositoryImpl{store}
}

func (r *tradeRepositoryImpl) AddTrade(_ context.Context, trade domain.Trade) error {
	if err := r.store.Insert(trade.ID, trade.Snapshot()); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrTradeAlreadyExists
		}
		return err
	}
	return nil
}

func (r *tradeRepositoryImpl) GetTrade(
	_ context.Context, tradeID string,
) (*domain.Trade, error) {
	var trade domain.Trade
	if err := r.store.Get(tradeID, &trade); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTradeNotFound
		}
		return nil, err
	}
	return &trade, nil
}

func (r *tradeRepositoryImpl) GetAllTrades(ctx context.Context) ([]domain.Trade, error) {
	return r.findTrades(ctx, nil)
}

func (r *tradeRepositoryImpl) GetActiveTrades(ctx context.Context) ([]domain.Trade, error) {
	trades, err := r.findTrades(ctx, nil)
	if err != nil {
		return nil, err
	}

	active := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if !t.LifeCycleState.IsTerminal() {
			active = append(active, t)
		}
	}
	return active, nil
}

func (r *tradeRepositoryImpl) GetTradesByOffer(
	ctx context.Context, offerID string,
) ([]domain.Trade, error) {
	query := badgerhold.Where("Offer.ID").Eq(offerID)
	return r.findTrades(ctx, query)
}

func (r *tradeRepositoryImpl) UpdateTrade(
	ctx context.Context, tradeID string,
	updateFn func(t *domain.Trade) (*domain.Trade, error),
) error {
	trade, err := r.GetTrade(ctx, tradeID)
	if err != nil {
		return err
	}

	updatedTrade, err := updateFn(trade)
	if err != nil {
		return err
	}

	return r.store.Update(tradeID, updatedTrade.Snapshot())
}

// Close is a no-op, the store is closed by the repo manager.
func (r *tradeRepositoryImpl) Close() {}

func (r *tradeRepositoryImpl) findTrades(
	_ context.Context, query *badgerhold.Query,
) ([]domain.Trade, error) {
	var trades []domain.Trade
	if err := r.store.Find(&trades, query); err != nil {
		return nil, err
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].CreatedAt < trades[j].CreatedAt
	})
	return trades, nil
}
