package trade

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/pkg/crawler"
)

// BlockchainListener defines the needed methods to start and stop a
// blockchain listener.
type BlockchainListener interface {
	ObserveBlockchain()
	StopObserveBlockchain()
}

// blockchainListener watches the deposits of the active trades and routes
// their confirmations to the trade service.
type blockchainListener struct {
	crawlerSvc crawler.Service
	tradeSvc   *Service

	lock          *sync.RWMutex
	tradesByTxid  map[string]string
	lastConfirmed map[string]int
}

// NewBlockchainListener returns a listener that is notified by the trade
// service of the deposits to watch.
func NewBlockchainListener(
	crawlerSvc crawler.Service, tradeSvc *Service,
) BlockchainListener {
	return newBlockchainListener(crawlerSvc, tradeSvc)
}

func newBlockchainListener(
	crawlerSvc crawler.Service, tradeSvc *Service,
) *blockchainListener {
	l := &blockchainListener{
		crawlerSvc:    crawlerSvc,
		tradeSvc:      tradeSvc,
		lock:          &sync.RWMutex{},
		tradesByTxid:  make(map[string]string),
		lastConfirmed: make(map[string]int),
	}
	tradeSvc.setWatcher(l)
	return l
}

func (b *blockchainListener) ObserveBlockchain() {
	go b.crawlerSvc.Start()
	go b.handleBlockChainEvents()
}

func (b *blockchainListener) StopObserveBlockchain() {
	b.crawlerSvc.Stop()
}

func (b *blockchainListener) WatchTransaction(txid, tradeID string) {
	b.lock.Lock()
	b.tradesByTxid[txid] = tradeID
	b.lock.Unlock()

	b.crawlerSvc.AddObservable(crawler.NewTransactionObservable(txid))
}

func (b *blockchainListener) UnwatchTransaction(txid string) {
	b.lock.Lock()
	_, ok := b.tradesByTxid[txid]
	delete(b.tradesByTxid, txid)
	delete(b.lastConfirmed, txid)
	b.lock.Unlock()

	if ok {
		b.crawlerSvc.RemoveObservable(crawler.NewTransactionObservable(txid))
	}
}

func (b *blockchainListener) handleBlockChainEvents() {
	for event := range b.crawlerSvc.GetEventChannel() {
		if event.Type() == crawler.CloseSignal {
			return
		}

		e, ok := event.(crawler.TransactionEvent)
		if !ok || e.EventType != crawler.TransactionConfirmed {
			continue
		}

		tradeID, changed := b.track(e.TxID, e.Confirmations)
		if !changed {
			continue
		}

		if err := b.tradeSvc.OnConfirmation(tradeID, e.Confirmations); err != nil {
			log.WithError(err).Warnf(
				"trying to confirm deposit %s of trade %s", e.TxID, tradeID,
			)
		}
	}
}

// track returns the trade the transaction belongs to and whether its number
// of confirmations changed since the last event.
func (b *blockchainListener) track(txid string, confirmations int) (string, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	tradeID, ok := b.tradesByTxid[txid]
	if !ok || b.lastConfirmed[txid] >= confirmations {
		return "", false
	}
	b.lastConfirmed[txid] = confirmations
	return tradeID, true
}
