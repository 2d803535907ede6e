package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferDirection is the direction of an offer from the offerer's point of
// view with respect to the base asset.
type OfferDirection int

const (
	OfferDirectionBuy OfferDirection = iota
	OfferDirectionSell
)

func (d OfferDirection) String() string {
	if d == OfferDirectionBuy {
		return "BUY"
	}
	return "SELL"
}

// Offer is a published intent to trade an amount of base asset for quote
// asset at a given price.
type Offer struct {
	ID             string
	OffererAddress string
	OwnerPubKey    []byte
	Direction      OfferDirection
	BaseAsset      string
	QuoteAsset     string
	Amount         decimal.Decimal
	MinAmount      decimal.Decimal
	Price          decimal.Decimal
	PaymentMethod  string
	CreatedAt      int64
}

// NewOffer returns a validated offer with a new id.
func NewOffer(
	offererAddress string, direction OfferDirection,
	baseAsset, quoteAsset string,
	amount, minAmount, price decimal.Decimal,
	paymentMethod string,
) (*Offer, error) {
	if offererAddress == "" {
		return nil, ErrOfferMissingAddress
	}
	if baseAsset == "" || quoteAsset == "" || baseAsset == quoteAsset {
		return nil, ErrOfferInvalidAssetPair
	}
	if !amount.IsPositive() || minAmount.IsNegative() || minAmount.GreaterThan(amount) {
		return nil, ErrOfferInvalidAmount
	}
	if !price.IsPositive() {
		return nil, ErrOfferInvalidPrice
	}

	return &Offer{
		ID:             uuid.New().String(),
		OffererAddress: offererAddress,
		Direction:      direction,
		BaseAsset:      baseAsset,
		QuoteAsset:     quoteAsset,
		Amount:         amount,
		MinAmount:      minAmount,
		Price:          price,
		PaymentMethod:  paymentMethod,
		CreatedAt:      time.Now().UnixMilli(),
	}, nil
}

// OffererRole returns the trade role of the offer creator.
func (o Offer) OffererRole() Role {
	if o.Direction == OfferDirectionBuy {
		return RoleBuyerAsOfferer
	}
	return RoleSellerAsOfferer
}

// TakerRole returns the trade role of whoever accepts the offer.
func (o Offer) TakerRole() Role {
	if o.Direction == OfferDirectionBuy {
		return RoleSellerAsTaker
	}
	return RoleBuyerAsTaker
}

// IsAmountInRange returns whether a trade for the given amount can be
// executed against the offer.
func (o Offer) IsAmountInRange(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(o.MinAmount) &&
		amount.LessThanOrEqual(o.Amount) && amount.IsPositive()
}

// QuoteAmount returns the amount of quote asset for the given base amount.
func (o Offer) QuoteAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(o.Price).Truncate(8)
}

// OpenOfferStatus is the status of an offer created by this node.
type OpenOfferStatus int

const (
	OpenOfferStatusAvailable OpenOfferStatus = iota
	OpenOfferStatusReserved
	OpenOfferStatusClosed
	OpenOfferStatusCanceled
)

func (s OpenOfferStatus) String() string {
	switch s {
	case OpenOfferStatusAvailable:
		return "AVAILABLE"
	case OpenOfferStatusReserved:
		return "RESERVED"
	case OpenOfferStatusClosed:
		return "CLOSED"
	case OpenOfferStatusCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// OpenOffer is an offer created by this node together with its status.
type OpenOffer struct {
	Offer   Offer
	Status  OpenOfferStatus
	TradeID string
}

// NewOpenOffer returns an available open offer.
func NewOpenOffer(offer Offer) *OpenOffer {
	return &OpenOffer{Offer: offer, Status: OpenOfferStatusAvailable}
}

// Reserve binds the offer to the trade that is going to consume it.
// Reserving it again for the same trade is a no-op.
func (o *OpenOffer) Reserve(tradeID string) error {
	if o.Status == OpenOfferStatusReserved && o.TradeID == tradeID {
		return nil
	}
	if o.Status != OpenOfferStatusAvailable {
		return ErrOpenOfferNotAvailable
	}
	o.Status = OpenOfferStatusReserved
	o.TradeID = tradeID
	return nil
}

// Release makes a reserved offer available again.
func (o *OpenOffer) Release() {
	if o.Status == OpenOfferStatusReserved {
		o.Status = OpenOfferStatusAvailable
		o.TradeID = ""
	}
}

// Close marks the offer as consumed. It returns false if it was already
// closed.
func (o *OpenOffer) Close() bool {
	if o.Status == OpenOfferStatusClosed {
		return false
	}
	o.Status = OpenOfferStatusClosed
	return true
}

// Cancel withdraws an offer that has not been consumed yet.
func (o *OpenOffer) Cancel() error {
	if o.Status == OpenOfferStatusCanceled {
		return nil
	}
	if o.Status == OpenOfferStatusClosed {
		return ErrOpenOfferClosed
	}
	o.Status = OpenOfferStatusCanceled
	return nil
}

func (o *OpenOffer) IsClosed() bool {
	return o.Status == OpenOfferStatusClosed
}
