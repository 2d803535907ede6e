package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

type tradeRepositoryImpl struct {
	locker *sync.RWMutex
	trades map[string]domain.Trade
}

// NewTradeRepositoryImpl returns a new inmemory TradeRepository implementation.
func NewTradeRepositoryImpl() domain.TradeRepository {
	return &tradeRepositoryImpl{
		locker: &sync.RWMutex{},
		trades: make(map[string]domain.Trade),
	}
}

func (r *tradeRepositoryImpl) AddTrade(_ context.Context, trade domain.Trade) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	if _, ok := r.trades[trade.ID]; ok {
		return domain.ErrTradeAlreadyExists
	}
	r.trades[trade.ID] = trade.Snapshot()
	return nil
}

func (r *tradeRepositoryImpl) GetTrade(
	_ context.Context, tradeID string,
) (*domain.Trade, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	trade, ok := r.trades[tradeID]
	if !ok {
		return nil, domain.ErrTradeNotFound
	}
	return &trade, nil
}

func (r *tradeRepositoryImpl) GetAllTrades(_ context.Context) ([]domain.Trade, error) {
	return r.filter(func(domain.Trade) bool { return true }), nil
}

func (r *tradeRepositoryImpl) GetActiveTrades(_ context.Context) ([]domain.Trade, error) {
	return r.filter(func(t domain.Trade) bool {
		return !t.LifeCycleState.IsTerminal()
	}), nil
}

func (r *tradeRepositoryImpl) GetTradesByOffer(
	_ context.Context, offerID string,
) ([]domain.Trade, error) {
	return r.filter(func(t domain.Trade) bool {
		return t.Offer.ID == offerID
	}), nil
}

func (r *tradeRepositoryImpl) UpdateTrade(
	_ context.Context, tradeID string,
	updateFn func(t *domain.Trade) (*domain.Trade, error),
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	trade, ok := r.trades[tradeID]
	if !ok {
		return domain.ErrTradeNotFound
	}

	updatedTrade, err := updateFn(&trade)
	if err != nil {
		return err
	}
	r.trades[tradeID] = updatedTrade.Snapshot()
	return nil
}

func (r *tradeRepositoryImpl) Close() {}

func (r *tradeRepositoryImpl) filter(keep func(domain.Trade) bool) []domain.Trade {
	r.locker.RLock()
	defer r.locker.RUnlock()

	trades := make([]domain.Trade, 0, len(r.trades))
	for _, t := range r.trades {
		if keep(t) {
			trades = append(trades, t)
		}
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].CreatedAt < trades[j].CreatedAt
	})
	return trades
}
