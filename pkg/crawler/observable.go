package crawler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	New       Status = "NEW"
	Waiting   Status = "WAITING"
	Processed Status = "PROCESSED"
)

type Status string

type ObservableStatus struct {
	sync.RWMutex
	status Status
}

func NewObservableStatus() *ObservableStatus {
	return &ObservableStatus{
		status: New,
	}
}

func (o *ObservableStatus) Get() Status {
	o.RLock()
	defer o.RUnlock()
	return o.status
}

func (o *ObservableStatus) Set(status Status) {
	o.Lock()
	defer o.Unlock()
	o.status = status
}

// TransactionObservable polls the number of confirmations of a transaction.
type TransactionObservable struct {
	TxID string
}

func NewTransactionObservable(txid string) *TransactionObservable {
	return &TransactionObservable{txid}
}

func (t *TransactionObservable) Observe(
	explorerSvc Explorer,
	errChan chan error,
	eventChan chan Event,
	observableStatus *ObservableStatus,
	rateLimiter *rate.Limiter,
) {
	if t == nil {
		return
	}

	observableStatus.Set(Waiting)
	if err := rateLimiter.Wait(context.Background()); err != nil {
		observableStatus.Set(Processed)
		errChan <- err
		return
	}

	confirmations, err := explorerSvc.GetTransactionConfirmations(t.TxID)
	observableStatus.Set(Processed)
	if err != nil {
		errChan <- err
		return
	}

	eventType := TransactionUnconfirmed
	if confirmations > 0 {
		eventType = TransactionConfirmed
	}

	eventChan <- TransactionEvent{
		TxID:          t.TxID,
		EventType:     eventType,
		Confirmations: confirmations,
	}
}

func (t *TransactionObservable) Key() string {
	return t.TxID
}

type observableHandler struct {
	observable       Observable
	explorerSvc      Explorer
	wg               *sync.WaitGroup
	ticker           *time.Ticker
	eventChan        chan Event
	errChan          chan error
	stopChan         chan struct{}
	observableStatus *ObservableStatus
	rateLimiter      *rate.Limiter
}

func newObservableHandler(
	observable Observable,
	explorerSvc Explorer,
	wg *sync.WaitGroup,
	interval time.Duration,
	eventChan chan Event,
	errChan chan error,
	rateLimiter *rate.Limiter,
) *observableHandler {
	return &observableHandler{
		observable:       observable,
		explorerSvc:      explorerSvc,
		wg:               wg,
		ticker:           time.NewTicker(interval),
		eventChan:        eventChan,
		errChan:          errChan,
		stopChan:         make(chan struct{}),
		observableStatus: NewObservableStatus(),
		rateLimiter:      rateLimiter,
	}
}

func (oh *observableHandler) start() {
	log.Debugf("start observing %s", oh.observable.Key())
	defer oh.wg.Done()

	for {
		select {
		case <-oh.ticker.C:
			if oh.observableStatus.Get() != Waiting {
				oh.observable.Observe(
					oh.explorerSvc,
					oh.errChan,
					oh.eventChan,
					oh.observableStatus,
					oh.rateLimiter,
				)
			}
		case <-oh.stopChan:
			oh.ticker.Stop()
			return
		}
	}
}

func (oh *observableHandler) stop() {
	log.Debugf("stop observing %s", oh.observable.Key())
	close(oh.stopChan)
}
