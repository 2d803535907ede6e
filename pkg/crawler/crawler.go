package crawler

import "golang.org/x/time/rate"

// Explorer is the source of blockchain info the crawler polls.
type Explorer interface {
	GetTransactionConfirmations(txid string) (int, error)
}

// Event are emitted through a channel during observation.
type Event interface {
	Type() EventType
}

// Observable represent object that can be observe on the blockchain.
type Observable interface {
	Observe(
		explorerSvc Explorer,
		errChan chan error,
		eventChan chan Event,
		observableStatus *ObservableStatus,
		rateLimiter *rate.Limiter,
	)
	Key() string
}

// Service is the interface for Crawler
type Service interface {
	Start()
	Stop()
	AddObservable(observable Observable)
	RemoveObservable(observable Observable)
	IsObserving(key string) bool
	GetEventChannel() chan Event
}
