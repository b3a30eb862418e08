package main

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type blockingConsumer struct {
	started atomic.Bool
}

func (c *blockingConsumer) Run(ctx context.Context) error {
	c.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct{ err error }

func (c failingConsumer) Run(context.Context) error { return c.err }

type countingFlusher struct{ calls atomic.Int32 }

func (f *countingFlusher) Flush(context.Context) error {
	f.calls.Add(1)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestRunStopsAllConsumersWhenOneFails(t *testing.T) {
	blocking := &blockingConsumer{}
	flush := &countingFlusher{}
	boom := errors.New("subscription deleted")
	svc, err := NewService(ServiceParams{
		Logger: testLogger(),
		Consumers: map[string]consumer{
			"fulfillment": blocking,
			"analytics":   failingConsumer{err: boom},
		},
		Flushers: []flusher{flush},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if flush.calls.Load() != 1 {
		t.Fatalf("expected flush on exit, got %d", flush.calls.Load())
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	blocking := &blockingConsumer{}
	flush := &countingFlusher{}
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: map[string]consumer{"contact": blocking},
		Flushers:  []flusher{flush},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = svc.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !blocking.started.Load() {
		t.Fatalf("consumer never started")
	}
	if flush.calls.Load() != 1 {
		t.Fatalf("expected flush on exit")
	}
}

func TestRunFailsWhenDependencyUnavailable(t *testing.T) {
	blocking := &blockingConsumer{}
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: map[string]consumer{"contact": blocking},
		Dependencies: map[string]pinger{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
	if blocking.started.Load() {
		t.Fatalf("consumers must not start before dependencies are ready")
	}
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected error without consumers")
	}
}
