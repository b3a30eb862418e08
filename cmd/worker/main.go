package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	analyticsworker "github.com/angelmondragon/storefront-backend/internal/analytics/worker"
	"github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/internal/contact"
	"github.com/angelmondragon/storefront-backend/internal/fulfillment"
	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery", err)

	defer func() {
		closeErr := multierr.Combine(
			bqClient.Close(),
			pubsubClient.Close(),
			redisClient.Close(),
			dbClient.Close(),
		)
		if closeErr != nil {
			logg.Error(ctx, "error closing resources", closeErr)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	functionsClient, err := functions.NewClient(cfg.Functions, &http.Client{Timeout: cfg.Functions.RequestTimeout}, logg)
	requireResource(ctx, logg, "functions client", err)

	fulfillmentConsumer, err := fulfillment.NewConsumer(
		orders.NewRepository(dbClient.DB()),
		functionsClient,
		pubsubClient.FulfillmentSubscription(),
		manager,
		cfg.Eventing.PostProcessingGrace,
		logg,
	)
	requireResource(ctx, logg, "fulfillment consumer", err)

	contactConsumer, err := notifications.NewContactConsumer(
		functionsClient,
		contact.NewRepository(dbClient.DB()),
		pubsubClient.ContactSubscription(),
		manager,
		logg,
	)
	requireResource(ctx, logg, "contact consumer", err)

	analyticsWriter, err := writer.New(bqClient, writer.Config{OrdersTable: cfg.BigQuery.OrdersTable})
	requireResource(ctx, logg, "analytics writer", err)

	analyticsRouter, err := router.NewRouter(analyticsWriter, logg, nil)
	requireResource(ctx, logg, "analytics router", err)

	analyticsConsumer, err := analyticsworker.NewService(pubsubClient.AnalyticsSubscription(), analyticsRouter, manager, logg)
	requireResource(ctx, logg, "analytics consumer", err)

	service, err := NewService(ServiceParams{
		Logger: logg,
		Consumers: map[string]consumer{
			"fulfillment": fulfillmentConsumer,
			"contact":     contactConsumer,
			"analytics":   analyticsConsumer,
		},
		Dependencies: map[string]pinger{
			"database": dbClient.Ping,
			"redis":    redisClient.Ping,
			"pubsub":   pubsubClient.Ping,
			"bigquery": bqClient.Ping,
		},
		Flushers: []flusher{analyticsWriter},
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
