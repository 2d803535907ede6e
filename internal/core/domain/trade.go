package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferCloser retires the open offers consumed by a trade. Closing an
// already closed offer must be a no-op.
type OfferCloser interface {
	CloseOpenOffer(offer Offer) error
}

// FailedTradeRemover evicts failed trades from the set of active ones.
type FailedTradeRemover interface {
	RemoveFailedTrade(trade *Trade) error
}

// Disposable is a resource bound to a trade that must be released once the
// trade is over.
type Disposable interface {
	Dispose()
}

// TradeHandlers are the collaborators a trade calls into when reacting to
// state changes. Every handler is optional.
type TradeHandlers struct {
	OfferCloser  OfferCloser
	TradeRemover FailedTradeRemover
	// OnError is called whenever an error is recorded on the trade, including
	// the failures of the other handlers.
	OnError func(trade *Trade, err error)
	// OnStateChanged is called after every applied state change.
	OnStateChanged func(trade *Trade)
}

// Trade is the data structure representing an offer accepted by a taker and
// now in escrow-execution. Exported fields are the persisted ones.
type Trade struct {
	ID                   string
	Role                 Role
	Offer                Offer
	TradeAmount          decimal.NullDecimal
	TradingPeer          string
	ProcessState         ProcessState
	PreviousProcessState ProcessState
	LifeCycleState       LifeCycleState
	TakeOfferDate        int64
	DepositTxID          string
	PayoutTxID           string
	ErrorMessage         string
	CreatedAt            int64
	ProtocolDisposed     bool

	lock     *sync.Mutex
	handlers TradeHandlers
	protocol Disposable
	err      error
}

// NewTrade returns a trade in preparation for the given role.
func NewTrade(role Role, offer Offer, tradingPeer string) (*Trade, error) {
	if !role.IsValid() {
		return nil, ErrTradeInvalidRole
	}
	if tradingPeer == "" {
		return nil, ErrTradeMissingPeer
	}
	return &Trade{
		ID:             uuid.New().String(),
		Role:           role,
		Offer:          offer,
		TradingPeer:    tradingPeer,
		ProcessState:   MilestonesOf(role.Side()).Undefined,
		LifeCycleState: LifeCyclePreparation,
		CreatedAt:      time.Now().Unix(),
		lock:           &sync.Mutex{},
	}, nil
}

// Bind sets the collaborators of the trade. A trade restored from storage
// must be bound before being shared, binding never fires any reaction.
func (t *Trade) Bind(handlers TradeHandlers) {
	if t.lock == nil {
		t.lock = &sync.Mutex{}
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	t.handlers = handlers
	if t.ErrorMessage != "" && t.err == nil {
		t.err = errors.New(t.ErrorMessage)
	}
}

// AttachProtocol binds the protocol driver to the trade. If the trade
// already released its protocol, the given one is disposed right away.
func (t *Trade) AttachProtocol(protocol Disposable) {
	t.lock.Lock()
	disposed := t.ProtocolDisposed
	if !disposed {
		t.protocol = protocol
	}
	t.lock.Unlock()

	if disposed && protocol != nil {
		protocol.Dispose()
	}
}

// SetTradeAmount sets the amount of base asset being exchanged. It can be
// changed only while the trade is in preparation.
func (t *Trade) SetTradeAmount(amount decimal.Decimal) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.LifeCycleState != LifeCyclePreparation {
		return ErrTradeNotInPreparation
	}
	if !t.Offer.IsAmountInRange(amount) {
		return ErrTradeAmountOutOfRange
	}
	t.TradeAmount = decimal.NullDecimal{Decimal: amount, Valid: true}
	return nil
}

func (t *Trade) SetDepositTxID(txid string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.DepositTxID == "" {
		t.DepositTxID = txid
	}
}

func (t *Trade) SetPayoutTxID(txid string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.PayoutTxID == "" {
		t.PayoutTxID = txid
	}
}

// SetProcessState is the single entry point for protocol progress. The
// state must belong to the trade side, otherwise it panics. A state with a
// lower ordinal than the current one is rejected, as is any change after the
// trade reached a terminal life cycle state, except for re-setting the
// current state which is a no-op. Reactions to the new state are executed
// after the trade is unlocked.
func (t *Trade) SetProcessState(state ProcessState) error {
	t.mustAllow(state)

	t.lock.Lock()
	effects, err := t.applyProcessState(state)
	t.lock.Unlock()

	t.run(effects)
	return err
}

// SetLifeCycleState moves the trade to the given life cycle state. Reaching
// FAILED or COMPLETED releases the protocol, exactly once.
func (t *Trade) SetLifeCycleState(state LifeCycleState) error {
	t.lock.Lock()
	effects, err := t.applyLifeCycleState(state)
	if err == nil && len(effects) > 0 {
		effects = append(effects, t.notifyStateChanged())
	}
	t.lock.Unlock()

	t.run(effects)
	return err
}

// OnDepositConfirmation advances the trade to DEPOSIT_CONFIRMED only if the
// current state precedes it. A confirmation observed before the deposit
// publication applies DEPOSIT_PUBLISHED first.
func (t *Trade) OnDepositConfirmation(confirmations int) error {
	if confirmations <= 0 {
		return nil
	}

	t.lock.Lock()
	effects, err := t.applyDepositConfirmation()
	t.lock.Unlock()

	t.run(effects)
	return err
}

func (t *Trade) applyDepositConfirmation() ([]func(), error) {
	milestones := MilestonesOf(t.Role.Side())
	if t.LifeCycleState.IsTerminal() {
		return nil, nil
	}

	effects := make([]func(), 0)
	for _, state := range []ProcessState{
		milestones.DepositPublished, milestones.DepositConfirmed,
	} {
		if t.ProcessState.Ordinal() >= state.Ordinal() {
			continue
		}
		e, err := t.applyProcessState(state)
		if err != nil {
			return effects, err
		}
		effects = append(effects, e...)
	}
	return effects, nil
}

// Timeout drives the trade to the TIMEOUT state. It is a no-op for an
// already terminated trade.
func (t *Trade) Timeout() error {
	return t.fail(MilestonesOf(t.Role.Side()).Timeout, ErrTradeTimedOut)
}

// Fault drives the trade to the FAULT state recording the given cause. It is
// a no-op for an already terminated trade.
func (t *Trade) Fault(cause error) error {
	if cause == nil {
		cause = ErrTradeFault
	}
	return t.fail(MilestonesOf(t.Role.Side()).Fault, cause)
}

func (t *Trade) fail(state ProcessState, cause error) error {
	t.lock.Lock()
	if t.LifeCycleState.IsTerminal() {
		t.lock.Unlock()
		return nil
	}
	t.setError(cause)
	effects, err := t.applyProcessState(state)
	t.lock.Unlock()

	t.run(effects)
	return err
}

// SetError records the error on the trade and notifies it to the error
// handler without changing the trade state.
func (t *Trade) SetError(err error) {
	if err == nil {
		return
	}
	t.lock.Lock()
	t.setError(err)
	onError := t.handlers.OnError
	t.lock.Unlock()

	if onError != nil {
		onError(t, err)
	}
}

// Error returns the last error recorded on the trade, if any.
func (t *Trade) Error() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.err
}

func (t *Trade) GetProcessState() ProcessState {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.ProcessState
}

func (t *Trade) GetLifeCycleState() LifeCycleState {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.LifeCycleState
}

func (t *Trade) IsTerminated() bool {
	return t.GetLifeCycleState().IsTerminal()
}

// Snapshot returns a copy of the persisted part of the trade.
func (t *Trade) Snapshot() Trade {
	if t.lock != nil {
		t.lock.Lock()
		defer t.lock.Unlock()
	}
	return Trade{
		ID:                   t.ID,
		Role:                 t.Role,
		Offer:                t.Offer,
		TradeAmount:          t.TradeAmount,
		TradingPeer:          t.TradingPeer,
		ProcessState:         t.ProcessState,
		PreviousProcessState: t.PreviousProcessState,
		LifeCycleState:       t.LifeCycleState,
		TakeOfferDate:        t.TakeOfferDate,
		DepositTxID:          t.DepositTxID,
		PayoutTxID:           t.PayoutTxID,
		ErrorMessage:         t.ErrorMessage,
		CreatedAt:            t.CreatedAt,
		ProtocolDisposed:     t.ProtocolDisposed,
	}
}

// applyProcessState must be called with the lock held. It returns the
// effects to run once the lock is released.
func (t *Trade) applyProcessState(state ProcessState) ([]func(), error) {
	t.mustAllow(state)
	if t.LifeCycleState.IsTerminal() {
		if state == t.ProcessState {
			return nil, nil
		}
		return nil, ErrTradeTerminated
	}
	if state.Ordinal() < t.ProcessState.Ordinal() {
		return nil, fmt.Errorf(
			"%w: %s -> %s", ErrProcessStateRegression, t.ProcessState, state,
		)
	}

	t.PreviousProcessState = t.ProcessState
	t.ProcessState = state

	effects := reactionsByRole[t.Role](t, state)
	return append(effects, t.notifyStateChanged()), nil
}

// applyLifeCycleState must be called with the lock held.
func (t *Trade) applyLifeCycleState(state LifeCycleState) ([]func(), error) {
	if state == t.LifeCycleState {
		return nil, nil
	}
	if t.LifeCycleState.IsTerminal() {
		return nil, ErrTradeTerminated
	}
	if state < t.LifeCycleState {
		return nil, fmt.Errorf(
			"%w: %s -> %s", ErrLifeCycleStateRegression, t.LifeCycleState, state,
		)
	}

	t.LifeCycleState = state
	if state.IsTerminal() {
		return t.disposeProtocol(), nil
	}
	return nil, nil
}

func (t *Trade) mustAllow(state ProcessState) {
	if state.Side != t.Role.Side() || !state.IsValid() {
		panic(fmt.Sprintf(
			"process state %s not allowed for trade role %s", state, t.Role,
		))
	}
}

func (t *Trade) disposeProtocol() []func() {
	if t.ProtocolDisposed {
		return nil
	}
	t.ProtocolDisposed = true
	protocol := t.protocol
	t.protocol = nil
	if protocol == nil {
		return nil
	}
	return []func(){protocol.Dispose}
}

func (t *Trade) setError(err error) {
	t.err = err
	t.ErrorMessage = err.Error()
}

func (t *Trade) notifyStateChanged() func() {
	onStateChanged := t.handlers.OnStateChanged
	return func() {
		if onStateChanged != nil {
			onStateChanged(t)
		}
	}
}

// reportError records a failure of a collaborator. It must be called without
// the lock held.
func (t *Trade) reportError(err error) {
	t.SetError(err)
}

func (t *Trade) run(effects []func()) {
	for _, effect := range effects {
		effect()
	}
}
