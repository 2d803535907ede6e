package datasync

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
)

const defaultPurgeInterval = time.Minute

type Config struct {
	SeedNodes         []string
	MaxResponseSize   int
	RequestsPerSecond int
	RequestTimeout    time.Duration
	// PurgeInterval is how often expired entries are removed from the store.
	PurgeInterval time.Duration
}

// Service keeps the local payload store in sync with the rest of the network.
type Service struct {
	handler   *RequestHandler
	manager   *RequestManager
	store     domain.PayloadStore
	messenger ports.Messenger
	seedNodes []string

	purgeInterval time.Duration
	quit          chan struct{}
}

func NewService(
	store domain.PayloadStore, messenger ports.Messenger, cfg Config,
) (*Service, error) {
	handler, err := NewRequestHandler(
		store, cfg.MaxResponseSize, cfg.RequestsPerSecond,
	)
	if err != nil {
		return nil, err
	}
	manager, err := NewRequestManager(store, messenger, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	purgeInterval := cfg.PurgeInterval
	if purgeInterval <= 0 {
		purgeInterval = defaultPurgeInterval
	}

	seedNodes := make([]string, 0, len(cfg.SeedNodes))
	for _, s := range cfg.SeedNodes {
		if s != messenger.Address() {
			seedNodes = append(seedNodes, s)
		}
	}

	return &Service{
		handler:       handler,
		manager:       manager,
		store:         store,
		messenger:     messenger,
		seedNodes:     seedNodes,
		purgeInterval: purgeInterval,
		quit:          make(chan struct{}),
	}, nil
}

func (s *Service) Handler() *RequestHandler {
	return s.handler
}

func (s *Service) Manager() *RequestManager {
	return s.manager
}

// Start starts purging expired entries periodically and asks the seed nodes
// for their data. A node with no other seed nodes to ask, like the first
// seed node of a network, starts with an empty store.
func (s *Service) Start(ctx context.Context) error {
	go s.purgeExpiredEntries()

	if len(s.seedNodes) == 0 {
		log.Info("no seed nodes to sync with, starting with local data only")
		return nil
	}

	nonces, err := s.manager.RequestInitialData(ctx, s.seedNodes)
	if err != nil {
		return fmt.Errorf("failed to request initial data: %w", err)
	}
	log.Infof("sent initial data requests to %d seed nodes", len(nonces))
	return nil
}

func (s *Service) Stop() {
	close(s.quit)
}

func (s *Service) purgeExpiredEntries() {
	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case now := <-ticker.C:
			count, err := s.store.RemoveExpiredEntries(context.Background(), now)
			if err != nil {
				log.WithError(err).Warn("failed to remove expired entries")
				continue
			}
			if count > 0 {
				log.Debugf("removed %d expired entries", count)
			}
		}
	}
}
