package wire

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

// TradeMessageType identifies a message of the trade protocol.
type TradeMessageType uint8

const (
	TakeOfferRequest TradeMessageType = iota + 1
	TakeOfferAccepted
	DepositTxPublished
	FiatPaymentStarted
	PayoutTxPublished
)

func (t TradeMessageType) String() string {
	switch t {
	case TakeOfferRequest:
		return "TAKE_OFFER_REQUEST"
	case TakeOfferAccepted:
		return "TAKE_OFFER_ACCEPTED"
	case DepositTxPublished:
		return "DEPOSIT_TX_PUBLISHED"
	case FiatPaymentStarted:
		return "FIAT_PAYMENT_STARTED"
	case PayoutTxPublished:
		return "PAYOUT_TX_PUBLISHED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

func (t TradeMessageType) IsValid() bool {
	return t >= TakeOfferRequest && t <= PayoutTxPublished
}

// TradeMessage is a message exchanged by the counterparties of a trade.
// Which fields are set depends on the message type.
type TradeMessage struct {
	Type    TradeMessageType `cbor:"1,keyasint"`
	TradeID string           `cbor:"2,keyasint"`
	OfferID string           `cbor:"3,keyasint,omitempty"`
	Amount  string           `cbor:"4,keyasint,omitempty"`
	TxID    string           `cbor:"5,keyasint,omitempty"`
}

// Validate checks that the fields mandatory for the message type are set.
func (m TradeMessage) Validate() error {
	switch m.Type {
	case TakeOfferRequest:
		if m.OfferID == "" {
			return fmt.Errorf("%w: offer id", ErrMissingField)
		}
		if _, err := decimal.NewFromString(m.Amount); err != nil {
			return fmt.Errorf("%w: amount", ErrMissingField)
		}
	case TakeOfferAccepted:
		if m.OfferID == "" {
			return fmt.Errorf("%w: offer id", ErrMissingField)
		}
	case DepositTxPublished, PayoutTxPublished:
		if m.TxID == "" {
			return fmt.Errorf("%w: txid", ErrMissingField)
		}
	}
	return nil
}

func EncodeTradeMessage(msg TradeMessage) ([]byte, error) {
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("%w: trade message %s", ErrUnknownKind, msg.Type)
	}
	return encMode.Marshal(msg)
}

// DecodeTradeMessage decodes a trade message. Only the type and the trade
// id are checked here, the other mandatory fields are up to the receiver.
func DecodeTradeMessage(buf []byte) (*TradeMessage, error) {
	msg := &TradeMessage{}
	if err := decode(buf, msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("%w: trade message %s", ErrUnknownKind, msg.Type)
	}
	if msg.TradeID == "" {
		return nil, fmt.Errorf("%w: trade id", ErrMissingField)
	}
	return msg, nil
}

type offerMsg struct {
	ID             string `cbor:"1,keyasint"`
	OffererAddress string `cbor:"2,keyasint"`
	OwnerPubKey    []byte `cbor:"3,keyasint,omitempty"`
	Direction      uint8  `cbor:"4,keyasint"`
	BaseAsset      string `cbor:"5,keyasint"`
	QuoteAsset     string `cbor:"6,keyasint"`
	Amount         string `cbor:"7,keyasint"`
	MinAmount      string `cbor:"8,keyasint"`
	Price          string `cbor:"9,keyasint"`
	PaymentMethod  string `cbor:"10,keyasint,omitempty"`
	CreatedAt      int64  `cbor:"11,keyasint"`
}

// EncodeOffer encodes the offer as the data of a storage payload.
func EncodeOffer(offer domain.Offer) ([]byte, error) {
	return encMode.Marshal(offerMsg{
		ID:             offer.ID,
		OffererAddress: offer.OffererAddress,
		OwnerPubKey:    offer.OwnerPubKey,
		Direction:      uint8(offer.Direction),
		BaseAsset:      offer.BaseAsset,
		QuoteAsset:     offer.QuoteAsset,
		Amount:         offer.Amount.String(),
		MinAmount:      offer.MinAmount.String(),
		Price:          offer.Price.String(),
		PaymentMethod:  offer.PaymentMethod,
		CreatedAt:      offer.CreatedAt,
	})
}

func DecodeOffer(buf []byte) (*domain.Offer, error) {
	msg := offerMsg{}
	if err := decode(buf, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.OffererAddress == "" {
		return nil, fmt.Errorf("%w: offer id or offerer address", ErrMissingField)
	}
	if msg.Direction > uint8(domain.OfferDirectionSell) {
		return nil, fmt.Errorf("%w: offer direction %d", ErrUnknownKind, msg.Direction)
	}

	amounts := make([]decimal.Decimal, 0, 3)
	for _, v := range []string{msg.Amount, msg.MinAmount, msg.Price} {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
		}
		amounts = append(amounts, d)
	}

	return &domain.Offer{
		ID:             msg.ID,
		OffererAddress: msg.OffererAddress,
		OwnerPubKey:    msg.OwnerPubKey,
		Direction:      domain.OfferDirection(msg.Direction),
		BaseAsset:      msg.BaseAsset,
		QuoteAsset:     msg.QuoteAsset,
		Amount:         amounts[0],
		MinAmount:      amounts[1],
		Price:          amounts[2],
		PaymentMethod:  msg.PaymentMethod,
		CreatedAt:      msg.CreatedAt,
	}, nil
}
