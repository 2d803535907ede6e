package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/config"
	"github.com/tdex-network/tdex-p2p/internal/core/application/datasync"
	"github.com/tdex-network/tdex-p2p/internal/core/application/offer"
	"github.com/tdex-network/tdex-p2p/internal/core/application/trade"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/internal/infrastructure/explorer/esplora"
	"github.com/tdex-network/tdex-p2p/internal/infrastructure/network/websocket"
	dbbadger "github.com/tdex-network/tdex-p2p/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/tdex-p2p/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/tdex-network/tdex-p2p/internal/interfaces/http"
	p2pinterface "github.com/tdex-network/tdex-p2p/internal/interfaces/p2p"
	"github.com/tdex-network/tdex-p2p/pkg/crawler"
	"github.com/tdex-network/tdex-p2p/pkg/stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to init config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := start(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to start daemon")
	}
	defer stop()

	if interval := config.GetSeconds(config.StatsIntervalKey); interval > 0 {
		stats.EnableMemoryStatistics(ctx, interval)
	}

	log.Info("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down daemon")
}

// start wires and starts every service of the daemon. The returned func
// stops them in reverse order.
func start(ctx context.Context) (func(), error) {
	repoManager, err := newRepoManager()
	if err != nil {
		return nil, err
	}
	nodeKey, err := config.GetNodeKey()
	if err != nil {
		repoManager.Close()
		return nil, fmt.Errorf("failed to load node key: %w", err)
	}
	transport, err := websocket.NewTransport(config.GetString(config.NodeAddressKey))
	if err != nil {
		repoManager.Close()
		return nil, err
	}

	stopFns := []func(){repoManager.Close, transport.Close}
	stop := func() {
		for i := len(stopFns) - 1; i >= 0; i-- {
			stopFns[i]()
		}
	}
	fail := func(err error) (func(), error) {
		stop()
		return nil, err
	}

	dataSvc, err := datasync.NewService(
		repoManager.PayloadStore(), transport, datasync.Config{
			SeedNodes:         config.GetStringSlice(config.SeedNodesKey),
			MaxResponseSize:   config.GetInt(config.MaxGetDataResponseSizeKey),
			RequestsPerSecond: config.GetInt(config.GetDataRequestsPerSecondKey),
			RequestTimeout:    config.GetSeconds(config.GetDataRequestTimeoutKey),
		},
	)
	if err != nil {
		return fail(err)
	}
	offerSvc, err := offer.NewService(
		repoManager, transport.Address(), nodeKey,
		config.GetSeconds(config.OfferTTLKey),
	)
	if err != nil {
		return fail(err)
	}
	tradeSvc, err := trade.NewService(
		repoManager, transport, offerSvc, config.GetSeconds(config.TradeTimeoutKey),
	)
	if err != nil {
		return fail(err)
	}

	explorerSvc, err := esplora.NewService(config.GetString(config.ExplorerEndpointKey))
	if err != nil {
		return fail(fmt.Errorf("failed to connect to explorer: %w", err))
	}
	crawlerSvc := crawler.NewService(crawler.Opts{
		ExplorerSvc:     explorerSvc,
		CrawlerInterval: config.GetMilliseconds(config.ConfirmationPollIntervalKey),
		ExplorerLimit:   config.GetInt(config.ExplorerRequestsPerSecondKey),
		ErrorHandler: func(err error) {
			log.WithError(err).Warn("failed to fetch transaction status")
		},
	})
	blockchainListener := trade.NewBlockchainListener(crawlerSvc, tradeSvc)

	p2pHandler, err := p2pinterface.NewHandlerFromServices(transport, dataSvc, tradeSvc)
	if err != nil {
		return fail(err)
	}
	transport.SetHandler(p2pHandler)

	p2pSvc, err := p2pinterface.NewService(
		fmt.Sprintf(":%d", config.GetInt(config.P2PListeningPortKey)), transport,
	)
	if err != nil {
		return fail(err)
	}
	operatorSvc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Address:       fmt.Sprintf(":%d", config.GetInt(config.OperatorListeningPortKey)),
		EnableMetrics: config.GetBool(config.EnableMetricsKey),
		Handler: httpinterface.NewHandler(
			transport.Address(), tradeSvc, offerSvc, dataSvc.Manager(),
			repoManager.PayloadStore(),
		),
	})
	if err != nil {
		return fail(err)
	}

	if err := p2pSvc.Start(); err != nil {
		return fail(err)
	}
	stopFns = append(stopFns, p2pSvc.Stop)

	blockchainListener.ObserveBlockchain()
	stopFns = append(stopFns, blockchainListener.StopObserveBlockchain)

	if err := tradeSvc.Start(ctx); err != nil {
		return fail(fmt.Errorf("failed to restore trades: %w", err))
	}
	stopFns = append(stopFns, tradeSvc.Stop)

	if err := offerSvc.Start(ctx); err != nil {
		return fail(fmt.Errorf("failed to publish open offers: %w", err))
	}
	stopFns = append(stopFns, offerSvc.Stop)

	// The node keeps serving its own data even if no seed node answers.
	if err := dataSvc.Start(ctx); err != nil {
		log.WithError(err).Warn("initial data sync failed")
	}
	stopFns = append(stopFns, dataSvc.Stop)

	if err := operatorSvc.Start(); err != nil {
		return fail(err)
	}
	stopFns = append(stopFns, operatorSvc.Stop)

	log.Infof("node address: %s", transport.Address())
	return stop, nil
}

func newRepoManager() (ports.RepoManager, error) {
	switch dbType := config.GetString(config.DBTypeKey); dbType {
	case config.DBInmemory:
		return inmemory.NewRepoManager(), nil
	case config.DBBadger:
		dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
		return dbbadger.NewRepoManager(dbDir, nil)
	default:
		return nil, fmt.Errorf("unknown db type %s", dbType)
	}
}
