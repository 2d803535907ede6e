package trade

import "errors"

var (
	// ErrActionNotAllowedForRole is returned when a user action is routed to
	// a trade whose role can't perform it.
	ErrActionNotAllowedForRole = errors.New("action not allowed for trade role")
	// ErrDepositNotConfirmed is returned when a fiat payment action is
	// requested before the deposit got confirmed.
	ErrDepositNotConfirmed = errors.New("deposit transaction not confirmed yet")
	// ErrFiatPaymentNotReceived is returned when the seller publishes the
	// payout before confirming the fiat payment receipt.
	ErrFiatPaymentNotReceived = errors.New("fiat payment not received yet")
	// ErrUnknownTradingPeer is returned for messages about a trade coming
	// from a peer other than its counterparty.
	ErrUnknownTradingPeer = errors.New("message sender is not the trading peer")
	// ErrInvalidTradeMessage is returned for messages missing mandatory
	// fields.
	ErrInvalidTradeMessage = errors.New("invalid trade message")
	// ErrCannotTakeOwnOffer is returned when taking an offer of this node.
	ErrCannotTakeOwnOffer = errors.New("cannot take own offer")
	ErrMissingTxID        = errors.New("missing transaction id")
)
