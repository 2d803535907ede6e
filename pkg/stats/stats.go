package stats

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	BYTE = 1 << (10 * iota)
	KILOBYTE
	MEGABYTE
	GIGABYTE
)

const namespace = "tdexp2p"

var (
	// DataRequests counts the outgoing data requests by kind and outcome.
	DataRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "datasync",
		Name:      "requests_total",
		Help:      "Outgoing data requests by kind and outcome.",
	}, []string{"kind", "outcome"})
	// DataResponsesServed counts the responses sent to other peers.
	DataResponsesServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "datasync",
		Name:      "responses_served_total",
		Help:      "Data responses sent to other peers, by truncation.",
	}, []string{"truncated"})
	// StaleDataResponses counts the responses not matching any request.
	StaleDataResponses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "datasync",
		Name:      "stale_responses_total",
		Help:      "Data responses discarded for not matching any pending request.",
	})
	// MergedItems counts the items merged into the payload store.
	MergedItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "datasync",
		Name:      "merged_items_total",
		Help:      "Items received from peers by family and merge result.",
	}, []string{"family", "result"})
	// TradeTransitions counts the process state changes of trades.
	TradeTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trade",
		Name:      "transitions_total",
		Help:      "Trade process state changes by role and state.",
	}, []string{"role", "state"})
	// ActiveTrades is the number of trades not yet failed nor completed.
	ActiveTrades = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "trade",
		Name:      "active",
		Help:      "Trades not yet failed nor completed.",
	})
)

func init() {
	prometheus.MustRegister(
		DataRequests,
		DataResponsesServed,
		StaleDataResponses,
		MergedItems,
		TradeTransitions,
		ActiveTrades,
	)
}

// EnableMemoryStatistics enables go routine that periodically prints memory
// usage of the go process.
func EnableMemoryStatistics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				PrintMemoryStatistics()
				PrintNumOfRoutines()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func toMegabytes(bytes uint64) float64 {
	return float64(bytes) / MEGABYTE
}

// PrintMemoryStatistics prints memory statistics using go runtime library.
func PrintMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Debugf(
		"total allocated: %.3fMB, heap allocated: %.3fMB, "+
			"allocated objects count: %v, freed objects count: %v",
		toMegabytes(memStats.TotalAlloc),
		toMegabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
	)
}

// PrintNumOfRoutines prints number of go routines currently running
func PrintNumOfRoutines() {
	log.Debugf("num of go routines: %v", runtime.NumGoroutine())
}
