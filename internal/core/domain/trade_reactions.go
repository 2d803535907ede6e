package domain

import (
	"fmt"
	"time"
)

type reactionFn func(t *Trade, state ProcessState) []func()

var reactionsByRole = map[Role]reactionFn{
	RoleBuyerAsOfferer:  reactBuyerAsOfferer,
	RoleBuyerAsTaker:    reactBuyerAsTaker,
	RoleSellerAsOfferer: reactSellerAsOfferer,
	RoleSellerAsTaker:   reactSellerAsTaker,
}

func reactBuyerAsOfferer(t *Trade, state ProcessState) []func() {
	switch state {
	case BuyerDepositPublished:
		return append(t.onDepositPublished(), t.closeOpenOffer())
	case BuyerPayoutPublished:
		return t.onPayoutPublished()
	case BuyerTimeout, BuyerFault:
		return t.onFailure()
	}
	return nil
}

func reactBuyerAsTaker(t *Trade, state ProcessState) []func() {
	switch state {
	case BuyerDepositPublished:
		return t.onDepositPublished()
	case BuyerPayoutPublished:
		return t.onPayoutPublished()
	case BuyerTimeout, BuyerFault:
		return t.onFailure()
	}
	return nil
}

func reactSellerAsOfferer(t *Trade, state ProcessState) []func() {
	switch state {
	case SellerDepositPublished:
		return append(t.onDepositPublished(), t.closeOpenOffer())
	case SellerPayoutPublished:
		return t.onPayoutPublished()
	case SellerTimeout, SellerFault:
		return t.onFailure()
	}
	return nil
}

func reactSellerAsTaker(t *Trade, state ProcessState) []func() {
	switch state {
	case SellerDepositPublished:
		return t.onDepositPublished()
	case SellerPayoutPublished:
		return t.onPayoutPublished()
	case SellerTimeout, SellerFault:
		return t.onFailure()
	}
	return nil
}

func (t *Trade) onDepositPublished() []func() {
	if t.TakeOfferDate == 0 {
		t.TakeOfferDate = time.Now().Unix()
	}
	effects, _ := t.applyLifeCycleState(LifeCyclePending)
	return effects
}

func (t *Trade) onPayoutPublished() []func() {
	effects, _ := t.applyLifeCycleState(LifeCycleCompleted)
	return effects
}

func (t *Trade) onFailure() []func() {
	effects, _ := t.applyLifeCycleState(LifeCycleFailed)
	remover := t.handlers.TradeRemover
	if remover == nil {
		return effects
	}
	return append(effects, func() {
		if err := remover.RemoveFailedTrade(t); err != nil {
			t.reportError(fmt.Errorf("failed to remove trade: %w", err))
		}
	})
}

func (t *Trade) closeOpenOffer() func() {
	closer := t.handlers.OfferCloser
	offer := t.Offer
	return func() {
		if closer == nil {
			return
		}
		if err := closer.CloseOpenOffer(offer); err != nil {
			t.reportError(fmt.Errorf("failed to close open offer: %w", err))
		}
	}
}
