package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// consumer is one subscription loop run by the worker.
type consumer interface {
	Run(ctx context.Context) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

type pinger func(context.Context) error

type ServiceParams struct {
	Logger       *logger.Logger
	Consumers    map[string]consumer
	Dependencies map[string]pinger
	// Flushers drain buffered writes once every consumer has stopped.
	Flushers []flusher
}

type Service struct {
	logg      *logger.Logger
	consumers map[string]consumer
	deps      map[string]pinger
	flushers  []flusher
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("%s consumer is required", name)
		}
	}
	return &Service{
		logg:      params.Logger,
		consumers: params.Consumers,
		deps:      params.Dependencies,
		flushers:  params.Flushers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range s.deps {
		if err := pingDependency(ctx, s.logg, name, ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn pinger) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run starts every consumer and returns when the first one fails or ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for name, c := range s.consumers {
		group.Go(func() error {
			runCtx := s.logg.WithField(groupCtx, "consumer", name)
			s.logg.Info(runCtx, "consumer started")
			if err := c.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(runCtx, "consumer stopped unexpectedly", err)
				return fmt.Errorf("%s consumer: %w", name, err)
			}
			s.logg.Info(runCtx, "consumer stopped")
			return nil
		})
	}
	err := group.Wait()

	for _, f := range s.flushers {
		if flushErr := f.Flush(context.WithoutCancel(ctx)); flushErr != nil {
			s.logg.Error(ctx, "flush on shutdown failed", flushErr)
		}
	}

	if err != nil {
		return err
	}
	return ctx.Err()
}
