package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/curatedly/curatedly-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger        *logger.Logger
	Dependencies  map[string]pinger
	Notifications consumer
	MetricsAddr   string
	Metrics       http.Handler
}

// Service runs the purchase email consumer next to a metrics listener. Either
// one failing stops the other.
type Service struct {
	logg          *logger.Logger
	deps          map[string]pinger
	notifications consumer
	metricsAddr   string
	metrics       http.Handler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Notifications == nil {
		return nil, errors.New("notification consumer is required")
	}
	return &Service{
		logg:          params.Logger,
		deps:          params.Dependencies,
		notifications: params.Notifications,
		metricsAddr:   params.MetricsAddr,
		metrics:       params.Metrics,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.notifications.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(gctx, "notification consumer stopped", err)
		}
		return err
	})

	if s.metrics != nil && s.metricsAddr != "" {
		server := &http.Server{
			Addr:              s.metricsAddr,
			Handler:           s.metrics,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
