package httpinterface

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	interfaces "github.com/tdex-network/tdex-p2p/internal/interfaces"
)

// ServiceOpts are the options of the operator interface.
type ServiceOpts struct {
	Address       string
	EnableMetrics bool
	Handler       http.Handler
}

func (o ServiceOpts) validate() error {
	if _, _, err := net.SplitHostPort(o.Address); err != nil {
		return fmt.Errorf("invalid operator listening address: %s", err)
	}
	if o.Handler == nil {
		return fmt.Errorf("missing operator handler")
	}
	return nil
}

type service struct {
	opts   ServiceOpts
	server *http.Server
}

// NewService returns the operator interface serving the given handler and,
// if enabled, the prometheus metrics at /metrics.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", opts.Handler)
	if opts.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return &service{
		opts: opts,
		server: &http.Server{
			Addr:              opts.Address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *service) Start() error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("operator server stopped unexpectedly")
		}
	}()

	log.Infof("operator interface listening on %s", s.opts.Address)
	if s.opts.EnableMetrics {
		log.Infof("metrics served at http://%s/metrics", s.opts.Address)
	}
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop operator server")
	}
	log.Info("operator interface stopped")
}
