package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/invoices"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mail"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "functions"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = "functions"

	logg = logger.New(logger.Options{
		ServiceName: "functions",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := context.Background()

	if cfg.Functions.Token == "" && !cfg.App.IsDev() {
		logg.Warn(ctx, "functions token is empty; endpoints are unauthenticated")
	}

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(ctx, "error closing gcs client", err)
		}
	}()

	paymentParams := payments.ServiceParams{
		AllowSimulated: cfg.FeatureFlags.AllowSimulatedPayment,
		Logger:         logg,
	}
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe", err)
		paymentParams.Gateway = stripeClient
	}
	paymentService, err := payments.NewService(paymentParams)
	requireResource(ctx, logg, "payment service", err)

	invoiceService, err := invoices.NewService(invoices.NewRenderer(cfg.Store), gcsClient, cfg.GCS.BucketName, logg)
	requireResource(ctx, logg, "invoice service", err)

	sender, err := mail.NewSender(cfg.Sendgrid, cfg.App.IsDev(), logg)
	requireResource(ctx, logg, "mail sender", err)

	mailer, err := notifications.NewMailer(sender, cfg.Store, cfg.Sendgrid.ContactInbox, logg)
	requireResource(ctx, logg, "mailer", err)

	handler := routes.NewFunctionsRouter(cfg, logg, routes.FunctionServices{
		Payments:    paymentService,
		Invoices:    invoiceService,
		OrderMail:   mailer,
		ContactMail: mailer,
	})

	addr := ":" + env.Get("PORT", cfg.Functions.Port)
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting functions server")

	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "functions server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "functions server shutdown failed", err)
		}
	}
	logg.Info(runCtx, "functions server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
