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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/analytics"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/contact"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/internal/newsletter"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/sequencer"
	"github.com/angelmondragon/storefront-backend/internal/shippingrates"
	"github.com/angelmondragon/storefront-backend/internal/users"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	shutdownTimeout   = 15 * time.Second
	webhookReplayTTL  = 72 * time.Hour
	webhookGuardScope = "stripe-webhook"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery", err)

	defer func() {
		closeErr := multierr.Combine(
			bqClient.Close(),
			gcsClient.Close(),
			redisClient.Close(),
			dbClient.Close(),
		)
		if closeErr != nil {
			logg.Error(ctx, "error closing resources", closeErr)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gormDB := dbClient.DB()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	userRepo := users.NewRepository(gormDB)
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireResource(ctx, logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		UserRepoFactory: func(tx *gorm.DB) auth.RegisterUserRepository {
			return users.NewRepository(tx)
		},
	})
	requireResource(ctx, logg, "register service", err)

	profileService, err := users.NewProfileService(userRepo)
	requireResource(ctx, logg, "profile service", err)

	addressService, err := address.NewService(address.NewRepository(gormDB))
	requireResource(ctx, logg, "address service", err)

	productRepo := products.NewRepository(gormDB)
	productService, err := products.NewService(productRepo)
	requireResource(ctx, logg, "product service", err)

	mediaService, err := media.NewService(media.ServiceParams{
		Products:      productRepo,
		Signer:        gcsClient,
		Bucket:        cfg.GCS.BucketName,
		UploadTTL:     cfg.GCS.UploadURLExpiry,
		PublicBaseURL: cfg.GCS.PublicBaseURL,
	})
	requireResource(ctx, logg, "media service", err)

	reviewService, err := reviews.NewService(reviews.ServiceParams{
		Repo:        reviews.NewRepository(gormDB),
		ProductRepo: productRepo,
	})
	requireResource(ctx, logg, "review service", err)

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlist.NewRepository(gormDB),
		ProductRepo:  productRepo,
	})
	requireResource(ctx, logg, "wishlist service", err)

	rates, err := shippingrates.NewProvider(
		pricing.NewEngine(pricing.RatesFromConfig(cfg.Checkout)),
		shippingrates.NewRepository(gormDB),
		logg,
	)
	requireResource(ctx, logg, "shipping rates", err)

	couponResolver, err := coupons.NewResolver(coupons.NewRepository(gormDB))
	requireResource(ctx, logg, "coupon resolver", err)

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(gormDB),
		Products: productRepo,
		Coupons:  couponResolver,
		Pricing:  rates,
		Cache:    redisClient,
		Logger:   logg,
	})
	requireResource(ctx, logg, "cart service", err)

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	ordersRepo := orders.NewRepository(gormDB)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Outbox:    outboxService,
		Signer:    gcsClient,
		Bucket:    cfg.GCS.BucketName,
		URLExpiry: cfg.GCS.DownloadURLExpiry,
		Logger:    logg,
	})
	requireResource(ctx, logg, "order service", err)

	seq, err := sequencer.New(gormDB, cfg.Checkout)
	requireResource(ctx, logg, "order sequencer", err)

	functionsClient, err := functions.NewClient(cfg.Functions, &http.Client{Timeout: cfg.Functions.RequestTimeout}, logg)
	requireResource(ctx, logg, "functions client", err)

	paymentService, err := newPaymentService(ctx, cfg, logg)
	requireResource(ctx, logg, "payment verifier", err)

	attemptRepo := checkout.NewRepository(gormDB)
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Attempts:  attemptRepo,
		Orders:    ordersRepo,
		Tx:        dbClient,
		Cart:      cartService,
		Coupons:   couponResolver,
		Pricing:   rates,
		Addresses: addressService,
		Sequencer: seq,
		Endpoints: functionsClient,
		Payments:  paymentService,
		Locks:     redisClient,
		Outbox:    outboxService,
		Metrics:   checkoutMetrics,
		Logger:    logg,
		Config:    cfg.Checkout,
	})
	requireResource(ctx, logg, "checkout service", err)

	stripeEvents, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Attempts: attemptRepo,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	requireResource(ctx, logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookReplayTTL, webhookGuardScope)
	requireResource(ctx, logg, "stripe webhook guard", err)

	analyticsService, err := analytics.NewService(bqClient)
	requireResource(ctx, logg, "analytics service", err)

	contactService, err := contact.NewService(contact.NewRepository(gormDB), dbClient, outboxService)
	requireResource(ctx, logg, "contact service", err)

	newsletterService, err := newsletter.NewService(gormDB)
	requireResource(ctx, logg, "newsletter service", err)

	handler := routes.NewRouter(cfg, logg, redisClient, registry, map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"gcs":      gcsClient,
		"bigquery": bqClient,
	}, routes.APIServices{
		Sessions:   sessionManager,
		Auth:       authService,
		Register:   registerService,
		Profiles:   profileService,
		Addresses:  addressService,
		Products:   productService,
		Media:      mediaService,
		Reviews:    reviewService,
		Wishlist:   wishlistService,
		Cart:       cartService,
		Checkout:   checkoutService,
		Orders:     orderService,
		Analytics:  analyticsService,
		Shipping:   rates,
		Contact:    contactService,
		Newsletter: newsletterService,

		StripeEvents: stripeEvents,
		WebhookGuard: webhookGuard,
	})

	addr := ":" + env.Get("PORT", cfg.App.Port)
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting api server")

	if err := serve(runCtx, &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server shut down gracefully")
}

// newPaymentService builds the verifier used at confirmation. Without a Stripe
// key only simulated confirmations are accepted, which config limits to dev.
func newPaymentService(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*payments.Service, error) {
	params := payments.ServiceParams{
		AllowSimulated: cfg.FeatureFlags.AllowSimulatedPayment,
		Logger:         logg,
	}
	if cfg.Stripe.APIKey != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		params.Gateway = client
	}
	return payments.NewService(params)
}

func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
