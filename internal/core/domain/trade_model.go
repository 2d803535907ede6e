package domain

import "fmt"

// Side tells whether a trade participant pays fiat (buyer) or releases the
// asset (seller).
type Side int

const (
	SideBuyer Side = iota
	SideSeller
)

func (s Side) String() string {
	if s == SideBuyer {
		return "BUYER"
	}
	return "SELLER"
}

// Role is the combination of side and of whether the participant created
// (offerer) or accepted (taker) the offer.
type Role int

const (
	RoleBuyerAsOfferer Role = iota
	RoleBuyerAsTaker
	RoleSellerAsOfferer
	RoleSellerAsTaker
)

var roleLabels = map[Role]string{
	RoleBuyerAsOfferer:  "BUYER_AS_OFFERER",
	RoleBuyerAsTaker:    "BUYER_AS_TAKER",
	RoleSellerAsOfferer: "SELLER_AS_OFFERER",
	RoleSellerAsTaker:   "SELLER_AS_TAKER",
}

func (r Role) String() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(r))
}

func (r Role) Side() Side {
	if r == RoleBuyerAsOfferer || r == RoleBuyerAsTaker {
		return SideBuyer
	}
	return SideSeller
}

func (r Role) IsOfferer() bool {
	return r == RoleBuyerAsOfferer || r == RoleSellerAsOfferer
}

func (r Role) IsValid() bool {
	_, ok := roleLabels[r]
	return ok
}

// ProcessState tracks the progress of the trade protocol. Codes are
// side-specific and ordered, the failure states having the highest ones.
type ProcessState struct {
	Side Side
	Code int
}

const (
	buyerCodeUndefined = iota
	buyerCodeNegotiating
	buyerCodeDepositPublished
	buyerCodeDepositConfirmed
	buyerCodeFiatPaymentStarted
	buyerCodePayoutPublished
	buyerCodeTimeout
	buyerCodeFault
)

const (
	sellerCodeUndefined = iota
	sellerCodeNegotiating
	sellerCodeDepositPublished
	sellerCodeDepositConfirmed
	sellerCodeFiatPaymentStartedMsgReceived
	sellerCodeFiatPaymentReceived
	sellerCodePayoutPublished
	sellerCodeTimeout
	sellerCodeFault
)

var (
	BuyerUndefined = ProcessState{SideBuyer, buyerCodeUndefined}
	// BuyerNegotiating is the state of a trade whose terms are being agreed
	// with the counterparty.
	BuyerNegotiating = ProcessState{SideBuyer, buyerCodeNegotiating}
	// BuyerDepositPublished is the state of a trade whose escrow deposit
	// transaction has been observed published.
	BuyerDepositPublished = ProcessState{SideBuyer, buyerCodeDepositPublished}
	// BuyerDepositConfirmed is the state of a trade whose deposit got at least
	// one confirmation.
	BuyerDepositConfirmed = ProcessState{SideBuyer, buyerCodeDepositConfirmed}
	// BuyerFiatPaymentStarted is the state of a trade whose fiat payment has
	// been initiated by the buyer.
	BuyerFiatPaymentStarted = ProcessState{SideBuyer, buyerCodeFiatPaymentStarted}
	// BuyerPayoutPublished is the state of a trade whose payout transaction
	// releasing the escrow has been published.
	BuyerPayoutPublished = ProcessState{SideBuyer, buyerCodePayoutPublished}
	BuyerTimeout         = ProcessState{SideBuyer, buyerCodeTimeout}
	BuyerFault           = ProcessState{SideBuyer, buyerCodeFault}

	SellerUndefined        = ProcessState{SideSeller, sellerCodeUndefined}
	SellerNegotiating      = ProcessState{SideSeller, sellerCodeNegotiating}
	SellerDepositPublished = ProcessState{SideSeller, sellerCodeDepositPublished}
	SellerDepositConfirmed = ProcessState{SideSeller, sellerCodeDepositConfirmed}
	// SellerFiatPaymentStartedMsgReceived is the state of a trade whose
	// buyer notified that the fiat payment has been initiated.
	SellerFiatPaymentStartedMsgReceived = ProcessState{
		SideSeller, sellerCodeFiatPaymentStartedMsgReceived,
	}
	// SellerFiatPaymentReceived is the state of a trade whose fiat payment
	// has been confirmed received by the seller.
	SellerFiatPaymentReceived = ProcessState{SideSeller, sellerCodeFiatPaymentReceived}
	SellerPayoutPublished     = ProcessState{SideSeller, sellerCodePayoutPublished}
	SellerTimeout             = ProcessState{SideSeller, sellerCodeTimeout}
	SellerFault               = ProcessState{SideSeller, sellerCodeFault}
)

var processStateLabels = map[ProcessState]string{
	BuyerUndefined:                      "UNDEFINED",
	BuyerNegotiating:                    "NEGOTIATING",
	BuyerDepositPublished:               "DEPOSIT_PUBLISHED",
	BuyerDepositConfirmed:               "DEPOSIT_CONFIRMED",
	BuyerFiatPaymentStarted:             "FIAT_PAYMENT_STARTED",
	BuyerPayoutPublished:                "PAYOUT_PUBLISHED",
	BuyerTimeout:                        "TIMEOUT",
	BuyerFault:                          "FAULT",
	SellerUndefined:                     "UNDEFINED",
	SellerNegotiating:                   "NEGOTIATING",
	SellerDepositPublished:              "DEPOSIT_PUBLISHED",
	SellerDepositConfirmed:              "DEPOSIT_CONFIRMED",
	SellerFiatPaymentStartedMsgReceived: "FIAT_PAYMENT_STARTED_MSG_RECEIVED",
	SellerFiatPaymentReceived:           "FIAT_PAYMENT_RECEIVED",
	SellerPayoutPublished:               "PAYOUT_PUBLISHED",
	SellerTimeout:                       "TIMEOUT",
	SellerFault:                         "FAULT",
}

func (s ProcessState) String() string {
	if label, ok := processStateLabels[s]; ok {
		return fmt.Sprintf("%s_%s", s.Side, label)
	}
	return fmt.Sprintf("%s_UNKNOWN(%d)", s.Side, s.Code)
}

// Ordinal returns the position of the state in its side's chain.
func (s ProcessState) Ordinal() int {
	return s.Code
}

func (s ProcessState) IsValid() bool {
	_, ok := processStateLabels[s]
	return ok
}

// IsFailure returns whether the state is one of the absorbing failure ones.
func (s ProcessState) IsFailure() bool {
	milestones := MilestonesOf(s.Side)
	return s == milestones.Timeout || s == milestones.Fault
}

// Milestones groups the process states that both sides share by meaning.
type Milestones struct {
	Undefined        ProcessState
	Negotiating      ProcessState
	DepositPublished ProcessState
	DepositConfirmed ProcessState
	PayoutPublished  ProcessState
	Timeout          ProcessState
	Fault            ProcessState
}

var (
	buyerMilestones = Milestones{
		Undefined:        BuyerUndefined,
		Negotiating:      BuyerNegotiating,
		DepositPublished: BuyerDepositPublished,
		DepositConfirmed: BuyerDepositConfirmed,
		PayoutPublished:  BuyerPayoutPublished,
		Timeout:          BuyerTimeout,
		Fault:            BuyerFault,
	}
	sellerMilestones = Milestones{
		Undefined:        SellerUndefined,
		Negotiating:      SellerNegotiating,
		DepositPublished: SellerDepositPublished,
		DepositConfirmed: SellerDepositConfirmed,
		PayoutPublished:  SellerPayoutPublished,
		Timeout:          SellerTimeout,
		Fault:            SellerFault,
	}
)

// MilestonesOf returns the shared milestones of the given side.
func MilestonesOf(side Side) Milestones {
	if side == SideBuyer {
		return buyerMilestones
	}
	return sellerMilestones
}

// LifeCycleState is the coarse, role independent status of a trade.
type LifeCycleState int

const (
	LifeCyclePreparation LifeCycleState = iota
	LifeCyclePending
	LifeCycleFailed
	LifeCycleCompleted
)

func (s LifeCycleState) String() string {
	switch s {
	case LifeCyclePreparation:
		return "PREPARATION"
	case LifeCyclePending:
		return "PENDING"
	case LifeCycleFailed:
		return "FAILED"
	case LifeCycleCompleted:
		return "COMPLETED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsTerminal returns whether the state can no longer change.
func (s LifeCycleState) IsTerminal() bool {
	return s == LifeCycleFailed || s == LifeCycleCompleted
}
