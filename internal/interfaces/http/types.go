package httpinterface

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/tdex-p2p/internal/core/application/offer"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

type offerInfo struct {
	ID             string          `json:"id"`
	OffererAddress string          `json:"offerer_address"`
	Direction      string          `json:"direction"`
	BaseAsset      string          `json:"base_asset"`
	QuoteAsset     string          `json:"quote_asset"`
	Amount         decimal.Decimal `json:"amount"`
	MinAmount      decimal.Decimal `json:"min_amount"`
	Price          decimal.Decimal `json:"price"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	CreatedAt      int64           `json:"created_at"`
}

func newOfferInfo(o domain.Offer) offerInfo {
	return offerInfo{
		ID:             o.ID,
		OffererAddress: o.OffererAddress,
		Direction:      o.Direction.String(),
		BaseAsset:      o.BaseAsset,
		QuoteAsset:     o.QuoteAsset,
		Amount:         o.Amount,
		MinAmount:      o.MinAmount,
		Price:          o.Price,
		PaymentMethod:  o.PaymentMethod,
		CreatedAt:      o.CreatedAt,
	}
}

type openOfferInfo struct {
	Offer   offerInfo `json:"offer"`
	Status  string    `json:"status"`
	TradeID string    `json:"trade_id,omitempty"`
}

func newOpenOfferInfo(o domain.OpenOffer) openOfferInfo {
	return openOfferInfo{
		Offer:   newOfferInfo(o.Offer),
		Status:  o.Status.String(),
		TradeID: o.TradeID,
	}
}

type tradeInfo struct {
	ID             string           `json:"id"`
	Role           string           `json:"role"`
	OfferID        string           `json:"offer_id"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	TradingPeer    string           `json:"trading_peer"`
	ProcessState   string           `json:"process_state"`
	LifeCycleState string           `json:"life_cycle_state"`
	DepositTxID    string           `json:"deposit_txid,omitempty"`
	PayoutTxID     string           `json:"payout_txid,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      int64            `json:"created_at"`
}

func newTradeInfo(t domain.Trade) tradeInfo {
	info := tradeInfo{
		ID:             t.ID,
		Role:           t.Role.String(),
		OfferID:        t.Offer.ID,
		TradingPeer:    t.TradingPeer,
		ProcessState:   t.ProcessState.String(),
		LifeCycleState: t.LifeCycleState.String(),
		DepositTxID:    t.DepositTxID,
		PayoutTxID:     t.PayoutTxID,
		Error:          t.ErrorMessage,
		CreatedAt:      t.CreatedAt,
	}
	if t.TradeAmount.Valid {
		amount := t.TradeAmount.Decimal
		info.Amount = &amount
	}
	return info
}

type placeOfferRequest struct {
	Direction     string          `json:"direction"`
	BaseAsset     string          `json:"base_asset"`
	QuoteAsset    string          `json:"quote_asset"`
	Amount        decimal.Decimal `json:"amount"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"payment_method"`
}

func (r placeOfferRequest) toArgs() (offer.PlaceOfferArgs, error) {
	var direction domain.OfferDirection
	switch strings.ToUpper(r.Direction) {
	case domain.OfferDirectionBuy.String():
		direction = domain.OfferDirectionBuy
	case domain.OfferDirectionSell.String():
		direction = domain.OfferDirectionSell
	default:
		return offer.PlaceOfferArgs{}, fmt.Errorf(
			"invalid direction %q, must be either BUY or SELL", r.Direction,
		)
	}
	return offer.PlaceOfferArgs{
		Direction:     direction,
		BaseAsset:     r.BaseAsset,
		QuoteAsset:    r.QuoteAsset,
		Amount:        r.Amount,
		MinAmount:     r.MinAmount,
		Price:         r.Price,
		PaymentMethod: r.PaymentMethod,
	}, nil
}

type takeOfferRequest struct {
	OfferID string          `json:"offer_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type txRequest struct {
	TxID string `json:"txid"`
}

type infoResponse struct {
	Address             string   `json:"address"`
	Capabilities        []string `json:"capabilities"`
	ActiveTrades        int      `json:"active_trades"`
	PendingDataRequests int      `json:"pending_data_requests"`
	StoredEntries       int      `json:"stored_entries"`
	StoredPayloads      int      `json:"stored_persistable_payloads"`
}

type errorResponse struct {
	Error string `json:"error"`
}
