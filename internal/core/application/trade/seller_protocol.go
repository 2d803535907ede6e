package trade

import (
	"context"
	"time"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

// SellerProtocol drives the trades of the seller of the base asset, either
// as offerer or taker.
type SellerProtocol struct {
	*protocol
}

func NewSellerProtocol(
	trade *domain.Trade, messenger ports.Messenger, timeout time.Duration,
) *SellerProtocol {
	return &SellerProtocol{newProtocol(trade, messenger, timeout)}
}

func (p *SellerProtocol) OnPeerMessage(
	ctx context.Context, msg wire.TradeMessage,
) error {
	if err := p.validate(msg); err != nil {
		return err
	}

	switch msg.Type {
	case wire.DepositTxPublished:
		return p.onDepositTxPublishedMessage(msg)
	case wire.FiatPaymentStarted:
		return p.advance(domain.SellerFiatPaymentStartedMsgReceived)
	default:
		return p.ignore(msg)
	}
}

func (p *SellerProtocol) OnDepositPublished(
	ctx context.Context, txid string,
) error {
	return p.onDepositPublished(ctx, txid)
}

// OnFiatPaymentReceived confirms the receipt of the fiat payment. The
// deposit must be confirmed.
func (p *SellerProtocol) OnFiatPaymentReceived(ctx context.Context) error {
	if err := p.checkActive(); err != nil {
		return err
	}
	if !p.hasReached(domain.SellerDepositConfirmed) {
		return ErrDepositNotConfirmed
	}
	return p.advance(domain.SellerFiatPaymentReceived)
}

// OnPayoutPublished records the payout releasing the escrow and notifies
// the buyer. The fiat payment must have been received.
func (p *SellerProtocol) OnPayoutPublished(
	ctx context.Context, txid string,
) error {
	if txid == "" {
		return ErrMissingTxID
	}
	if p.trade.GetProcessState() == domain.SellerPayoutPublished {
		return nil
	}
	if err := p.checkActive(); err != nil {
		return err
	}
	if !p.hasReached(domain.SellerFiatPaymentReceived) {
		return ErrFiatPaymentNotReceived
	}
	p.trade.SetPayoutTxID(txid)
	if err := p.advance(domain.SellerPayoutPublished); err != nil {
		return err
	}
	return p.send(ctx, wire.TradeMessage{
		Type: wire.PayoutTxPublished,
		TxID: txid,
	})
}
