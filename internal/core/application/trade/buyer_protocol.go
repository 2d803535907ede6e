package trade

import (
	"context"
	"time"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

// BuyerProtocol drives the trades of the buyer of the base asset, either as
// offerer or taker.
type BuyerProtocol struct {
	*protocol
}

func NewBuyerProtocol(
	trade *domain.Trade, messenger ports.Messenger, timeout time.Duration,
) *BuyerProtocol {
	return &BuyerProtocol{newProtocol(trade, messenger, timeout)}
}

func (p *BuyerProtocol) OnPeerMessage(
	ctx context.Context, msg wire.TradeMessage,
) error {
	if err := p.validate(msg); err != nil {
		return err
	}

	switch msg.Type {
	case wire.DepositTxPublished:
		return p.onDepositTxPublishedMessage(msg)
	case wire.PayoutTxPublished:
		p.trade.SetPayoutTxID(msg.TxID)
		return p.advance(domain.BuyerPayoutPublished)
	default:
		return p.ignore(msg)
	}
}

func (p *BuyerProtocol) OnDepositPublished(
	ctx context.Context, txid string,
) error {
	return p.onDepositPublished(ctx, txid)
}

// OnPayoutPublished records the payout seen by the local wallet. The seller
// is the one publishing it, so nothing is sent.
func (p *BuyerProtocol) OnPayoutPublished(
	_ context.Context, txid string,
) error {
	if txid == "" {
		return ErrMissingTxID
	}
	p.trade.SetPayoutTxID(txid)
	return p.advance(domain.BuyerPayoutPublished)
}

// OnFiatPaymentStarted notifies the seller that the fiat payment has been
// initiated. The deposit must be confirmed.
func (p *BuyerProtocol) OnFiatPaymentStarted(ctx context.Context) error {
	if err := p.checkActive(); err != nil {
		return err
	}
	if !p.hasReached(domain.BuyerDepositConfirmed) {
		return ErrDepositNotConfirmed
	}
	if p.hasReached(domain.BuyerFiatPaymentStarted) {
		return nil
	}
	if err := p.advance(domain.BuyerFiatPaymentStarted); err != nil {
		return err
	}
	return p.send(ctx, wire.TradeMessage{Type: wire.FiatPaymentStarted})
}
