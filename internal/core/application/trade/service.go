package trade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/stats"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

const defaultTradeTimeout = 10 * time.Minute

// OfferManager is the registry of the offers created by this node.
type OfferManager interface {
	domain.OfferCloser
	GetOpenOffer(ctx context.Context, offerID string) (*domain.OpenOffer, error)
	ReserveOpenOffer(ctx context.Context, offerID, tradeID string) error
	ReleaseOpenOffer(ctx context.Context, offerID, tradeID string) error
}

// TransactionWatcher is notified of the deposit transactions to watch for
// confirmations.
type TransactionWatcher interface {
	WatchTransaction(txid, tradeID string)
	UnwatchTransaction(txid string)
}

// Service is the registry of the active trades. It owns the trades and
// their protocol drivers and routes peer messages, user actions and
// blockchain events to them.
type Service struct {
	repoManager  ports.RepoManager
	messenger    ports.Messenger
	offerManager OfferManager
	tradeTimeout time.Duration

	lock      *sync.RWMutex
	protocols map[string]Protocol
	watcher   TransactionWatcher
}

func NewService(
	repoManager ports.RepoManager,
	messenger ports.Messenger,
	offerManager OfferManager,
	tradeTimeout time.Duration,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if messenger == nil {
		return nil, fmt.Errorf("missing messenger")
	}
	if offerManager == nil {
		return nil, fmt.Errorf("missing offer manager")
	}
	if tradeTimeout <= 0 {
		tradeTimeout = defaultTradeTimeout
	}

	return &Service{
		repoManager:  repoManager,
		messenger:    messenger,
		offerManager: offerManager,
		tradeTimeout: tradeTimeout,
		lock:         &sync.RWMutex{},
		protocols:    make(map[string]Protocol),
	}, nil
}

// Start restores the active trades from storage. Restoring a trade doesn't
// re-trigger any of its reactions, only the protocol timers are re-armed.
func (s *Service) Start(ctx context.Context) error {
	trades, err := s.repoManager.TradeRepository().GetActiveTrades(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore active trades: %w", err)
	}

	for i := range trades {
		trade := trades[i]
		p := s.register(&trade)
		baseOf(p).resume()
		s.watchDeposit(&trade)
	}

	log.Infof("restored %d active trades", len(trades))
	return nil
}

// Stop disposes the protocols of all active trades. Their state is left
// untouched so that they can be resumed at next start.
func (s *Service) Stop() {
	s.lock.Lock()
	protocols := s.protocols
	s.protocols = make(map[string]Protocol)
	s.lock.Unlock()

	for _, p := range protocols {
		p.Dispose()
	}
	stats.ActiveTrades.Set(0)
}

// TakeOffer starts a new trade as taker of the given offer. The returned
// trade is the live one, use Snapshot to read its fields.
func (s *Service) TakeOffer(
	ctx context.Context, offer domain.Offer, amount decimal.Decimal,
) (*domain.Trade, error) {
	if offer.OffererAddress == s.messenger.Address() {
		return nil, ErrCannotTakeOwnOffer
	}

	trade, err := domain.NewTrade(offer.TakerRole(), offer, offer.OffererAddress)
	if err != nil {
		return nil, err
	}
	if err := trade.SetTradeAmount(amount); err != nil {
		return nil, err
	}

	p, err := s.addTrade(ctx, trade)
	if err != nil {
		return nil, err
	}

	if err := p.send(ctx, wire.TradeMessage{
		Type:    wire.TakeOfferRequest,
		OfferID: offer.ID,
		Amount:  amount.String(),
	}); err != nil {
		if faultErr := trade.Fault(err); faultErr != nil {
			log.WithError(faultErr).Warnf("failed to fault trade %s", trade.ID)
		}
		return nil, err
	}

	log.Infof("trade %s: requested to take offer %s", trade.ID, offer.ID)
	return trade, nil
}

// HandleTradeMessage routes a message received from the given peer to the
// protocol of the related trade. A take offer request starts a new trade
// as offerer.
func (s *Service) HandleTradeMessage(
	ctx context.Context, sender string, msg wire.TradeMessage,
) error {
	if msg.Type == wire.TakeOfferRequest {
		return s.onTakeOfferRequest(ctx, sender, msg)
	}

	p, err := s.getProtocol(msg.TradeID)
	if err != nil {
		return err
	}
	if p.Trade().TradingPeer != sender {
		return ErrUnknownTradingPeer
	}
	return p.OnPeerMessage(ctx, msg)
}

// OnDepositPublished is called by the wallet once it published, or saw
// published, the deposit of the trade.
func (s *Service) OnDepositPublished(
	ctx context.Context, tradeID, txid string,
) error {
	p, err := s.getProtocol(tradeID)
	if err != nil {
		return err
	}
	return p.OnDepositPublished(ctx, txid)
}

// OnPayoutPublished is called by the wallet once it published, or saw
// published, the payout of the trade.
func (s *Service) OnPayoutPublished(
	ctx context.Context, tradeID, txid string,
) error {
	p, err := s.getProtocol(tradeID)
	if err != nil {
		return err
	}
	return p.OnPayoutPublished(ctx, txid)
}

// OnConfirmation routes the number of confirmations of the trade deposit.
func (s *Service) OnConfirmation(tradeID string, confirmations int) error {
	p, err := s.getProtocol(tradeID)
	if err != nil {
		return err
	}
	return p.OnConfirmation(confirmations)
}

// FiatPaymentStarted is the buyer action notifying the seller that the fiat
// payment has been sent.
func (s *Service) FiatPaymentStarted(ctx context.Context, tradeID string) error {
	p, err := s.getProtocol(tradeID)
	if err != nil {
		return err
	}
	buyer, ok := p.(*BuyerProtocol)
	if !ok {
		log.Errorf(
			"fiat payment started action not allowed for trade %s with role %s",
			tradeID, p.Trade().Role,
		)
		return ErrActionNotAllowedForRole
	}
	return buyer.OnFiatPaymentStarted(ctx)
}

// FiatPaymentReceived is the seller action confirming the receipt of the
// fiat payment.
func (s *Service) FiatPaymentReceived(ctx context.Context, tradeID string) error {
	p, err := s.getProtocol(tradeID)
	if err != nil {
		return err
	}
	seller, ok := p.(*SellerProtocol)
	if !ok {
		log.Errorf(
			"fiat payment received action not allowed for trade %s with role %s",
			tradeID, p.Trade().Role,
		)
		return ErrActionNotAllowedForRole
	}
	return seller.OnFiatPaymentReceived(ctx)
}

// GetTrade returns the trade with the given id, active or not.
func (s *Service) GetTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	if p, err := s.getProtocol(tradeID); err == nil {
		trade := p.Trade().Snapshot()
		return &trade, nil
	}
	return s.repoManager.TradeRepository().GetTrade(ctx, tradeID)
}

func (s *Service) ListTrades(ctx context.Context) ([]domain.Trade, error) {
	return s.repoManager.TradeRepository().GetAllTrades(ctx)
}

func (s *Service) ListActiveTrades() []domain.Trade {
	s.lock.RLock()
	defer s.lock.RUnlock()

	trades := make([]domain.Trade, 0, len(s.protocols))
	for _, p := range s.protocols {
		trades = append(trades, p.Trade().Snapshot())
	}
	return trades
}

func (s *Service) NumOfActiveTrades() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.protocols)
}

// RemoveFailedTrade evicts the trade from the active ones. The reservation
// of the open offer is released if the deposit was never published.
func (s *Service) RemoveFailedTrade(trade *domain.Trade) error {
	snapshot := trade.Snapshot()
	if snapshot.DepositTxID != "" {
		s.unwatchDeposit(snapshot.DepositTxID)
	}

	milestones := domain.MilestonesOf(snapshot.Role.Side())
	depositPublished :=
		snapshot.PreviousProcessState.Ordinal() >= milestones.DepositPublished.Ordinal()
	if snapshot.Role.IsOfferer() && !depositPublished {
		if err := s.offerManager.ReleaseOpenOffer(
			context.Background(), snapshot.Offer.ID, snapshot.ID,
		); err != nil {
			s.unregister(trade.ID)
			return err
		}
	}

	s.persist(trade)
	s.unregister(trade.ID)
	log.Infof("trade %s removed from active trades", trade.ID)
	return nil
}

func (s *Service) setWatcher(watcher TransactionWatcher) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.watcher = watcher
}

func (s *Service) onTakeOfferRequest(
	ctx context.Context, sender string, msg wire.TradeMessage,
) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w %s: %s", ErrInvalidTradeMessage, msg.Type, err)
	}
	if _, err := s.getProtocol(msg.TradeID); err == nil {
		log.Debugf("trade %s already started, ignoring %s", msg.TradeID, msg.Type)
		return nil
	}

	openOffer, err := s.offerManager.GetOpenOffer(ctx, msg.OfferID)
	if err != nil {
		return err
	}
	amount, _ := decimal.NewFromString(msg.Amount)

	trade, err := domain.NewTrade(openOffer.Offer.OffererRole(), openOffer.Offer, sender)
	if err != nil {
		return err
	}
	trade.ID = msg.TradeID
	if err := trade.SetTradeAmount(amount); err != nil {
		return err
	}

	if err := s.offerManager.ReserveOpenOffer(ctx, msg.OfferID, trade.ID); err != nil {
		return err
	}

	p, err := s.addTrade(ctx, trade)
	if err != nil {
		if releaseErr := s.offerManager.ReleaseOpenOffer(
			ctx, msg.OfferID, trade.ID,
		); releaseErr != nil {
			log.WithError(releaseErr).Warnf(
				"failed to release open offer %s", msg.OfferID,
			)
		}
		return err
	}

	log.Infof(
		"trade %s: offer %s taken by %s for %s",
		trade.ID, msg.OfferID, sender, amount,
	)
	return p.send(ctx, wire.TradeMessage{
		Type:    wire.TakeOfferAccepted,
		OfferID: msg.OfferID,
	})
}

// addTrade persists the new trade, registers its protocol and starts it.
func (s *Service) addTrade(
	ctx context.Context, trade *domain.Trade,
) (*protocol, error) {
	if err := s.repoManager.TradeRepository().AddTrade(
		ctx, trade.Snapshot(),
	); err != nil {
		return nil, err
	}

	p := s.register(trade)
	base := baseOf(p)
	if err := base.start(); err != nil {
		return nil, err
	}
	return base, nil
}

func (s *Service) register(trade *domain.Trade) Protocol {
	trade.Bind(domain.TradeHandlers{
		OfferCloser:    s.offerManager,
		TradeRemover:   s,
		OnError:        s.onTradeError,
		OnStateChanged: s.onTradeStateChanged,
	})
	p := NewProtocol(trade, s.messenger, s.tradeTimeout)
	trade.AttachProtocol(p)

	s.lock.Lock()
	s.protocols[trade.ID] = p
	count := len(s.protocols)
	s.lock.Unlock()

	stats.ActiveTrades.Set(float64(count))
	return p
}

func (s *Service) unregister(tradeID string) {
	s.lock.Lock()
	delete(s.protocols, tradeID)
	count := len(s.protocols)
	s.lock.Unlock()

	stats.ActiveTrades.Set(float64(count))
}

func (s *Service) getProtocol(tradeID string) (Protocol, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	p, ok := s.protocols[tradeID]
	if !ok {
		return nil, domain.ErrTradeNotFound
	}
	return p, nil
}

func (s *Service) onTradeStateChanged(trade *domain.Trade) {
	s.persist(trade)

	snapshot := trade.Snapshot()
	stats.TradeTransitions.WithLabelValues(
		snapshot.Role.String(), snapshot.ProcessState.String(),
	).Inc()
	log.Debugf(
		"trade %s: %s -> %s (%s)", snapshot.ID, snapshot.PreviousProcessState,
		snapshot.ProcessState, snapshot.LifeCycleState,
	)

	s.watchDeposit(trade)
	if snapshot.LifeCycleState == domain.LifeCycleCompleted {
		s.unregister(snapshot.ID)
		log.Infof("trade %s completed", snapshot.ID)
	}
}

func (s *Service) onTradeError(trade *domain.Trade, err error) {
	log.WithError(err).Warnf("trade %s", trade.ID)
	s.persist(trade)
}

// persist stores the current trade state. The snapshot is taken within the
// repository update so that concurrent updates can't store a stale one.
func (s *Service) persist(trade *domain.Trade) {
	if err := s.repoManager.TradeRepository().UpdateTrade(
		context.Background(), trade.ID,
		func(_ *domain.Trade) (*domain.Trade, error) {
			snapshot := trade.Snapshot()
			return &snapshot, nil
		},
	); err != nil {
		log.WithError(err).Warnf("failed to persist trade %s", trade.ID)
	}
}

// watchDeposit keeps the deposit of the trade watched until it gets
// confirmed or the trade is over.
func (s *Service) watchDeposit(trade *domain.Trade) {
	s.lock.RLock()
	watcher := s.watcher
	s.lock.RUnlock()
	if watcher == nil {
		return
	}

	snapshot := trade.Snapshot()
	if snapshot.DepositTxID == "" {
		return
	}
	milestones := domain.MilestonesOf(snapshot.Role.Side())
	if snapshot.LifeCycleState.IsTerminal() ||
		snapshot.ProcessState.Ordinal() >= milestones.DepositConfirmed.Ordinal() {
		watcher.UnwatchTransaction(snapshot.DepositTxID)
		return
	}
	watcher.WatchTransaction(snapshot.DepositTxID, snapshot.ID)
}

func (s *Service) unwatchDeposit(txid string) {
	s.lock.RLock()
	watcher := s.watcher
	s.lock.RUnlock()
	if watcher != nil {
		watcher.UnwatchTransaction(txid)
	}
}

func baseOf(p Protocol) *protocol {
	switch v := p.(type) {
	case *BuyerProtocol:
		return v.protocol
	case *SellerProtocol:
		return v.protocol
	default:
		panic(fmt.Sprintf("unknown protocol type %T", p))
	}
}
