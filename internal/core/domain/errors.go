package domain

import "errors"

var (
	// ErrTradeInvalidRole is returned when creating a trade with an unknown role
	ErrTradeInvalidRole = errors.New("invalid trade role")
	// ErrTradeMissingPeer is returned when creating a trade without the
	// address of the counterparty
	ErrTradeMissingPeer = errors.New("missing trading peer address")
	// ErrTradeNotInPreparation is returned when trying to change the terms of
	// a trade that already started
	ErrTradeNotInPreparation = errors.New("trade must be in preparation")
	// ErrTradeAmountOutOfRange ...
	ErrTradeAmountOutOfRange = errors.New("trade amount out of offer range")
	// ErrTradeTerminated is returned when trying to change the state of a
	// trade that already failed or completed
	ErrTradeTerminated = errors.New("trade is terminated")
	// ErrProcessStateRegression is returned when trying to move a trade to a
	// process state preceding the current one
	ErrProcessStateRegression = errors.New("process state regression not allowed")
	// ErrLifeCycleStateRegression ...
	ErrLifeCycleStateRegression = errors.New("life cycle state regression not allowed")
	// ErrTradeTimedOut is the cause recorded on trades that timed out
	ErrTradeTimedOut = errors.New("trade timed out")
	// ErrTradeFault is the default cause recorded on faulted trades
	ErrTradeFault = errors.New("trade fault")
	// ErrTradeNotFound ...
	ErrTradeNotFound = errors.New("trade not found")
	// ErrTradeAlreadyExists ...
	ErrTradeAlreadyExists = errors.New("trade already exists")

	// ErrOfferMissingAddress ...
	ErrOfferMissingAddress = errors.New("missing offerer address")
	// ErrOfferInvalidAssetPair ...
	ErrOfferInvalidAssetPair = errors.New("base and quote assets must be defined and different")
	// ErrOfferInvalidAmount ...
	ErrOfferInvalidAmount = errors.New("amount must be positive and not lower than min amount")
	// ErrOfferInvalidPrice ...
	ErrOfferInvalidPrice = errors.New("price must be positive")
	// ErrOpenOfferNotAvailable is returned when trying to reserve an offer
	// already reserved, closed or canceled
	ErrOpenOfferNotAvailable = errors.New("open offer is not available")
	// ErrOpenOfferClosed is returned when trying to cancel a consumed offer
	ErrOpenOfferClosed = errors.New("open offer is closed")
	// ErrOpenOfferNotFound ...
	ErrOpenOfferNotFound = errors.New("open offer not found")
	// ErrOpenOfferAlreadyExists ...
	ErrOpenOfferAlreadyExists = errors.New("open offer already exists")
)
