package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-matrix/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

type Config struct {
	HealthzAddr string
	MetricsAddr string
}

func DefaultConfig() Config {
	return Config{
		HealthzAddr: net.JoinHostPort(HealthzHost, HealthzPort),
		MetricsAddr: net.JoinHostPort(MetricsHost, MetricsPort),
	}
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	cfg   Config
	group *errgroup.Group
}

func New() *Service {
	return NewWithConfig(DefaultConfig())
}

func NewWithConfig(cfg Config) *Service {
	return &Service{
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
		cfg:     cfg,
	}
}

// Start launches both servers in the background. Failures are logged and
// counted; they never stop a run.
func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	s.group = new(errgroup.Group)
	s.group.Go(func() error {
		log.Info("starting healthz server", "addr", s.cfg.HealthzAddr)
		return serve("healthz", s.Healthz.Start(ctx, s.cfg.HealthzAddr))
	})
	s.group.Go(func() error {
		log.Info("starting metrics server", "addr", s.cfg.MetricsAddr)
		return serve("metrics", s.Metrics.Start(ctx, s.cfg.MetricsAddr))
	})

	log.Info("service started")
}

func serve(name string, err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	log.Error("error starting server", "server", name, "err", err)
	metrics.RecordErrorDetails("error starting "+name+" server", err)
	return err
}

// Shutdown stops both servers and waits for them to return.
func (s *Service) Shutdown() error {
	log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	log.Info("metrics stopped")

	var err error
	if s.group != nil {
		err = s.group.Wait()
	}
	log.Info("service stopped")
	return err
}
