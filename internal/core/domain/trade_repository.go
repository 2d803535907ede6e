package domain

import "context"

// TradeRepository is the abstraction for any kind of database intended to
// persist Trades. Only the exported fields of a trade are persisted.
type TradeRepository interface {
	// AddTrade adds a new trade. It fails if one with the same id exists.
	AddTrade(ctx context.Context, trade Trade) error
	// GetTrade returns the trade with the given id.
	GetTrade(ctx context.Context, tradeID string) (*Trade, error)
	// GetAllTrades returns all the trades stored in the repository.
	GetAllTrades(ctx context.Context) ([]Trade, error)
	// GetActiveTrades returns the trades not yet failed nor completed.
	GetActiveTrades(ctx context.Context) ([]Trade, error)
	// GetTradesByOffer returns all the trades related to the given offer.
	GetTradesByOffer(ctx context.Context, offerID string) ([]Trade, error)
	// UpdateTrade allows to commit multiple changes to the same trade in a
	// transactional way.
	UpdateTrade(
		ctx context.Context, tradeID string,
		updateFn func(t *Trade) (*Trade, error),
	) error
	Close()
}
