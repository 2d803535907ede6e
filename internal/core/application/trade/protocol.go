package trade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

// Protocol drives a trade in reaction to peer messages, wallet and
// blockchain events.
type Protocol interface {
	domain.Disposable
	Trade() *domain.Trade
	OnPeerMessage(ctx context.Context, msg wire.TradeMessage) error
	OnDepositPublished(ctx context.Context, txid string) error
	OnPayoutPublished(ctx context.Context, txid string) error
	OnConfirmation(confirmations int) error
	OnTimeout()
}

// NewProtocol returns the protocol driver for the side of the given trade.
func NewProtocol(
	trade *domain.Trade, messenger ports.Messenger, timeout time.Duration,
) Protocol {
	if trade.Role.Side() == domain.SideBuyer {
		return NewBuyerProtocol(trade, messenger, timeout)
	}
	return NewSellerProtocol(trade, messenger, timeout)
}

// protocol holds the logic shared by buyer and seller. The timer times the
// trade out if the deposit is not published in time.
type protocol struct {
	trade      *domain.Trade
	messenger  ports.Messenger
	timeout    time.Duration
	milestones domain.Milestones

	lock     *sync.Mutex
	timer    *time.Timer
	disposed bool
}

func newProtocol(
	trade *domain.Trade, messenger ports.Messenger, timeout time.Duration,
) *protocol {
	return &protocol{
		trade:      trade,
		messenger:  messenger,
		timeout:    timeout,
		milestones: domain.MilestonesOf(trade.Role.Side()),
		lock:       &sync.Mutex{},
	}
}

func (p *protocol) Trade() *domain.Trade {
	return p.trade
}

// Dispose stops the timer. Calling it more than once is a no-op.
func (p *protocol) Dispose() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.disposed {
		return
	}
	p.disposed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	log.Debugf("protocol of trade %s disposed", p.trade.ID)
}

// OnTimeout times the trade out unless its deposit has already been
// published. It's a no-op once the protocol is disposed.
func (p *protocol) OnTimeout() {
	p.lock.Lock()
	disposed := p.disposed
	p.timer = nil
	p.lock.Unlock()

	if disposed || p.hasReached(p.milestones.DepositPublished) {
		return
	}

	log.Warnf("trade %s timed out", p.trade.ID)
	if err := p.trade.Timeout(); err != nil {
		log.WithError(err).Warnf("failed to time out trade %s", p.trade.ID)
	}
}

func (p *protocol) OnConfirmation(confirmations int) error {
	err := p.trade.OnDepositConfirmation(confirmations)
	p.syncTimer()
	return err
}

// start moves the trade to NEGOTIATING and arms the timer.
func (p *protocol) start() error {
	if err := p.advance(p.milestones.Negotiating); err != nil {
		return err
	}
	p.startTimer(p.timeout)
	return nil
}

// resume re-arms the timer of a trade restored from storage for the time
// left since its creation.
func (p *protocol) resume() {
	if p.trade.IsTerminated() || p.hasReached(p.milestones.DepositPublished) {
		return
	}
	snapshot := p.trade.Snapshot()
	elapsed := time.Since(time.Unix(snapshot.CreatedAt, 0))
	p.startTimer(p.timeout - elapsed)
}

func (p *protocol) startTimer(d time.Duration) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.disposed || p.timer != nil || p.timeout <= 0 {
		return
	}
	if d < 0 {
		d = 0
	}
	p.timer = time.AfterFunc(d, p.OnTimeout)
}

func (p *protocol) syncTimer() {
	if !p.hasReached(p.milestones.DepositPublished) {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// checkActive returns an error if the trade can't accept user actions.
func (p *protocol) checkActive() error {
	if p.trade.IsTerminated() {
		return domain.ErrTradeTerminated
	}
	return nil
}

func (p *protocol) hasReached(state domain.ProcessState) bool {
	return p.trade.GetProcessState().Ordinal() >= state.Ordinal()
}

// advance moves the trade forward to the given state. Reaching a state
// already reached, or an older one, is ignored so that duplicated and
// delayed events don't re-trigger any reaction.
func (p *protocol) advance(state domain.ProcessState) error {
	if p.hasReached(state) {
		log.Debugf(
			"trade %s already in state %s, ignoring %s",
			p.trade.ID, p.trade.GetProcessState(), state,
		)
		return nil
	}

	err := p.trade.SetProcessState(state)
	p.syncTimer()
	if errors.Is(err, domain.ErrProcessStateRegression) ||
		errors.Is(err, domain.ErrTradeTerminated) {
		log.WithError(err).Debugf("ignoring state %s for trade %s", state, p.trade.ID)
		return nil
	}
	return err
}

func (p *protocol) onDepositPublished(ctx context.Context, txid string) error {
	if txid == "" {
		return ErrMissingTxID
	}
	if p.hasReached(p.milestones.DepositPublished) {
		return nil
	}
	p.trade.SetDepositTxID(txid)
	if err := p.advance(p.milestones.DepositPublished); err != nil {
		return err
	}
	if p.trade.Role.IsOfferer() {
		return nil
	}
	return p.send(ctx, wire.TradeMessage{
		Type: wire.DepositTxPublished,
		TxID: txid,
	})
}

func (p *protocol) onDepositTxPublishedMessage(msg wire.TradeMessage) error {
	if !p.trade.Role.IsOfferer() {
		return p.ignore(msg)
	}
	p.trade.SetDepositTxID(msg.TxID)
	return p.advance(p.milestones.DepositPublished)
}

// validate drives the trade to FAULT if the message misses any mandatory
// field.
func (p *protocol) validate(msg wire.TradeMessage) error {
	if err := msg.Validate(); err != nil {
		err = fmt.Errorf("%w %s: %s", ErrInvalidTradeMessage, msg.Type, err)
		if faultErr := p.trade.Fault(err); faultErr != nil {
			log.WithError(faultErr).Warnf("failed to fault trade %s", p.trade.ID)
		}
		return err
	}
	return nil
}

func (p *protocol) ignore(msg wire.TradeMessage) error {
	log.Debugf(
		"trade %s (%s): ignoring unexpected message %s",
		p.trade.ID, p.trade.Role, msg.Type,
	)
	return nil
}

// send delivers the message to the trading peer. Failures are recorded on
// the trade.
func (p *protocol) send(ctx context.Context, msg wire.TradeMessage) error {
	msg.TradeID = p.trade.ID
	payload, err := wire.EncodeTradeMessage(msg)
	if err != nil {
		return err
	}
	env := wire.NewEnvelope(wire.KindTradeMessage, p.messenger.Address(), payload)
	if err := p.messenger.Send(ctx, p.trade.TradingPeer, env); err != nil {
		err = fmt.Errorf("failed to send %s: %w", msg.Type, err)
		p.trade.SetError(err)
		return err
	}
	return nil
}
