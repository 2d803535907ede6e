package trade_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-p2p/internal/core/application/trade"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/pkg/crawler"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

// Messenger
type mockMessenger struct {
	mock.Mock
}

func (m *mockMessenger) Address() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockMessenger) Send(
	ctx context.Context, peer string, env wire.Envelope,
) error {
	args := m.Called(ctx, peer, env)
	return args.Error(0)
}

func (m *mockMessenger) Close() {}

func newMockMessenger(address string, sendErr error) *mockMessenger {
	m := &mockMessenger{}
	m.On("Address").Return(address)
	m.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(sendErr)
	return m
}

// sentMessages returns the trade messages sent through the mock.
func (m *mockMessenger) sentMessages() []wire.TradeMessage {
	msgs := make([]wire.TradeMessage, 0)
	for _, call := range m.Calls {
		if call.Method != "Send" {
			continue
		}
		env := call.Arguments.Get(2).(wire.Envelope)
		msg, err := wire.DecodeTradeMessage(env.Payload)
		if err != nil {
			continue
		}
		msgs = append(msgs, *msg)
	}
	return msgs
}

// network routes the envelopes sent by a node to the trade service of the
// recipient, synchronously.
type network struct {
	lock  sync.RWMutex
	nodes map[string]*trade.Service
}

func newNetwork() *network {
	return &network{nodes: make(map[string]*trade.Service)}
}

func (n *network) join(address string, svc *trade.Service) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.nodes[address] = svc
}

func (n *network) messenger(address string) *networkMessenger {
	return &networkMessenger{address, n}
}

type networkMessenger struct {
	address string
	net     *network
}

func (m *networkMessenger) Address() string {
	return m.address
}

func (m *networkMessenger) Send(
	ctx context.Context, peer string, env wire.Envelope,
) error {
	m.net.lock.RLock()
	svc, ok := m.net.nodes[peer]
	m.net.lock.RUnlock()
	if !ok {
		return fmt.Errorf("peer %s unreachable", peer)
	}

	msg, err := wire.DecodeTradeMessage(env.Payload)
	if err != nil {
		return err
	}
	// Errors of the recipient are not reported back to the sender.
	_ = svc.HandleTradeMessage(ctx, env.Sender, *msg)
	return nil
}

func (m *networkMessenger) Close() {}

// fakeOfferManager keeps open offers in memory and counts how many times
// each is actually closed.
type fakeOfferManager struct {
	lock       sync.Mutex
	offers     map[string]*domain.OpenOffer
	closeCount map[string]int
}

func newFakeOfferManager(offers ...domain.Offer) *fakeOfferManager {
	m := &fakeOfferManager{
		offers:     make(map[string]*domain.OpenOffer),
		closeCount: make(map[string]int),
	}
	for _, o := range offers {
		m.offers[o.ID] = domain.NewOpenOffer(o)
	}
	return m
}

func (m *fakeOfferManager) GetOpenOffer(
	_ context.Context, offerID string,
) (*domain.OpenOffer, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	o, ok := m.offers[offerID]
	if !ok {
		return nil, domain.ErrOpenOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *fakeOfferManager) ReserveOpenOffer(
	_ context.Context, offerID, tradeID string,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	o, ok := m.offers[offerID]
	if !ok {
		return domain.ErrOpenOfferNotFound
	}
	return o.Reserve(tradeID)
}

func (m *fakeOfferManager) ReleaseOpenOffer(
	_ context.Context, offerID, tradeID string,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	o, ok := m.offers[offerID]
	if !ok {
		return domain.ErrOpenOfferNotFound
	}
	if o.TradeID == tradeID {
		o.Release()
	}
	return nil
}

func (m *fakeOfferManager) CloseOpenOffer(offer domain.Offer) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	o, ok := m.offers[offer.ID]
	if !ok {
		return domain.ErrOpenOfferNotFound
	}
	if o.Close() {
		m.closeCount[offer.ID]++
	}
	return nil
}

func (m *fakeOfferManager) status(offerID string) domain.OpenOfferStatus {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.offers[offerID].Status
}

func (m *fakeOfferManager) closed(offerID string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closeCount[offerID]
}

// fakeCrawler lets tests emit blockchain events.
type fakeCrawler struct {
	lock      sync.Mutex
	observed  map[string]bool
	eventChan chan crawler.Event
}

func newFakeCrawler() *fakeCrawler {
	return &fakeCrawler{
		observed:  make(map[string]bool),
		eventChan: make(chan crawler.Event, 10),
	}
}

func (c *fakeCrawler) Start() {}

func (c *fakeCrawler) Stop() {
	c.eventChan <- crawler.CloseEvent{}
}

func (c *fakeCrawler) AddObservable(o crawler.Observable) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.observed[o.Key()] = true
}

func (c *fakeCrawler) RemoveObservable(o crawler.Observable) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.observed, o.Key())
}

func (c *fakeCrawler) IsObserving(key string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.observed[key]
}

func (c *fakeCrawler) GetEventChannel() chan crawler.Event {
	return c.eventChan
}
