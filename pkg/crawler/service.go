package crawler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	eventQueueMaxSize = 100
	errorQueueMaxSize = 10

	defaultCrawlerInterval = 5 * time.Second
	defaultExplorerLimit   = 10
	defaultTokenBurst      = 1
)

type blockchainCrawler struct {
	interval     time.Duration
	explorerSvc  Explorer
	errChan      chan error
	eventChan    chan Event
	observables  map[string]*observableHandler
	errorHandler func(err error)
	mutex        *sync.RWMutex
	wg           *sync.WaitGroup
	rateLimiter  *rate.Limiter
}

// Opts defines the parameters needed for creating a crawler service with
// NewService method.
type Opts struct {
	ExplorerSvc Explorer
	// CrawlerInterval is the polling interval of every observable.
	CrawlerInterval time.Duration
	// ExplorerLimit is the max number of requests per second to the explorer.
	ExplorerLimit      int
	ExplorerTokenBurst int
	ErrorHandler       func(err error)
}

// NewService returns a crawler that is ready for watching the blockchain.
// Use Start and Stop methods to manage it.
func NewService(opts Opts) Service {
	interval := opts.CrawlerInterval
	if interval <= 0 {
		interval = defaultCrawlerInterval
	}
	limit := opts.ExplorerLimit
	if limit <= 0 {
		limit = defaultExplorerLimit
	}
	burst := opts.ExplorerTokenBurst
	if burst <= 0 {
		burst = defaultTokenBurst
	}
	errorHandler := opts.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(error) {}
	}

	return &blockchainCrawler{
		interval:     interval,
		explorerSvc:  opts.ExplorerSvc,
		errChan:      make(chan error, errorQueueMaxSize),
		eventChan:    make(chan Event, eventQueueMaxSize),
		observables:  map[string]*observableHandler{},
		errorHandler: errorHandler,
		mutex:        &sync.RWMutex{},
		wg:           &sync.WaitGroup{},
		rateLimiter:  rate.NewLimiter(rate.Limit(limit), burst),
	}
}

// Start starts crawler which periodically "scans" blockchain for specific
// events/Observable object. It blocks until Stop is called.
func (bc *blockchainCrawler) Start() {
	for err := range bc.errChan {
		go bc.errorHandler(err)
	}
}

// Stop stops all the observable handlers, emits a CloseEvent and makes
// Start return.
func (bc *blockchainCrawler) Stop() {
	bc.mutex.Lock()
	for key, obsHandler := range bc.observables {
		obsHandler.stop()
		delete(bc.observables, key)
	}
	bc.mutex.Unlock()

	bc.wg.Wait()
	bc.eventChan <- CloseEvent{}
	close(bc.errChan)
}

// GetEventChannel returns Event channel which can be used to "listen" to
// blockchain events
func (bc *blockchainCrawler) GetEventChannel() chan Event {
	return bc.eventChan
}

// AddObservable adds new Observable to the list of Observables to be "watched
// over" only if the same Observable is not already in the list
func (bc *blockchainCrawler) AddObservable(observable Observable) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if _, ok := bc.observables[observable.Key()]; ok {
		return
	}

	obsHandler := newObservableHandler(
		observable,
		bc.explorerSvc,
		bc.wg,
		bc.interval,
		bc.eventChan,
		bc.errChan,
		bc.rateLimiter,
	)
	bc.observables[observable.Key()] = obsHandler
	bc.wg.Add(1)
	go obsHandler.start()
}

// RemoveObservable stops "watching" given Observable
func (bc *blockchainCrawler) RemoveObservable(observable Observable) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if obsHandler, ok := bc.observables[observable.Key()]; ok {
		obsHandler.stop()
		delete(bc.observables, observable.Key())
	}
}

// IsObserving returns whether the observable with the given key is watched.
func (bc *blockchainCrawler) IsObserving(key string) bool {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()

	_, ok := bc.observables[key]
	return ok
}
