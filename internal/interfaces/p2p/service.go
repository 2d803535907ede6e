package p2pinterface

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	interfaces "github.com/tdex-network/tdex-p2p/internal/interfaces"
)

type service struct {
	address string
	server  *http.Server
}

// NewService returns the server accepting the connections of other peers on
// the given address, served by the given handler.
func NewService(address string, handler http.Handler) (interfaces.Service, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, fmt.Errorf("invalid p2p listening address: %s", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("missing p2p handler")
	}
	return &service{
		address: address,
		server: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *service) Start() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("p2p server stopped unexpectedly")
		}
	}()

	log.Infof("p2p server listening on %s", s.address)
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop p2p server")
	}
	log.Info("p2p server stopped")
}
