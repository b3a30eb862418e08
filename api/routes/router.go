package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/storefront-backend/api/controllers/analytics"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/checkout"
	functioncontrollers "github.com/angelmondragon/storefront-backend/api/controllers/functions"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/analytics"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/functions"
	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Store backs idempotency replay and rate limiting.
type Store interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// APIServices holds everything the storefront API router mounts.
type APIServices struct {
	Sessions   session.AccessSessionChecker
	Auth       auth.Service
	Register   auth.RegisterService
	Profiles   users.ProfileService
	Addresses  address.Service
	Products   products.Service
	Media      media.Service
	Reviews    reviews.Service
	Wishlist   wishlist.Service
	Cart       cart.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	Analytics  analytics.Service
	Shipping   controllers.ShippingRates
	Contact    controllers.ContactSubmitter
	Newsletter controllers.NewsletterSubscriber

	// StripeEvents and WebhookGuard back the payment reconciliation webhook.
	StripeEvents webhookcontrollers.StripeEventHandler
	WebhookGuard webhookcontrollers.EventGuard
}

// FunctionServices holds the handlers behind the function endpoints.
type FunctionServices struct {
	Payments    functioncontrollers.PaymentOrderCreator
	Invoices    functioncontrollers.InvoiceGenerator
	OrderMail   functioncontrollers.OrderMailer
	ContactMail functioncontrollers.ContactMailer
}

// NewRouter builds the public storefront API.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store Store,
	gatherer prometheus.Gatherer,
	ready map[string]controllers.Pinger,
	svc APIServices,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	checkoutPolicy := middleware.RateLimitPolicy{Name: "checkout", Limit: cfg.RateLimit.CheckoutLimit, Window: cfg.RateLimit.Window}
	formsPolicy := middleware.RateLimitPolicy{Name: "forms", Limit: cfg.RateLimit.FormsLimit, Window: cfg.RateLimit.Window}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		authenticate := middleware.Auth(cfg.JWT, svc.Sessions, logg)
		idempotent := middleware.Idempotency(store, logg)

		r.With(middleware.AuthRateLimit(loginPolicy, store, logg)).Post("/auth/login", controllers.AuthLogin(svc.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, store, logg), idempotent).Post("/auth/register", controllers.AuthRegister(svc.Register, svc.Auth, logg))
		r.Post("/auth/refresh", controllers.AuthRefresh(svc.Auth, logg))
		r.Post("/auth/logout", controllers.AuthLogout(svc.Auth, cfg.JWT, logg))

		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(svc.StripeEvents, cfg.Stripe.WebhookSecret, svc.WebhookGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, svc.Sessions, logg))
			r.Get("/products", controllers.ProductList(svc.Products, logg))
			r.Get("/products/{productID}", controllers.ProductDetail(svc.Products, logg))
			r.Get("/products/{productID}/reviews", controllers.ReviewList(svc.Reviews, logg))
			r.Get("/shipping-rates", controllers.ShippingRateList(svc.Shipping, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, svc.Sessions, logg))
			r.Use(middleware.RateLimit(formsPolicy, store, logg))
			r.Use(idempotent)
			r.Post("/contact", controllers.ContactSubmit(svc.Contact, logg))
			r.Post("/newsletter", controllers.NewsletterSubscribe(svc.Newsletter, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(idempotent)

			r.Get("/profile", controllers.ProfileGet(svc.Profiles, logg))
			r.Patch("/profile", controllers.ProfileUpdate(svc.Profiles, logg))

			r.Get("/addresses", controllers.AddressList(svc.Addresses, logg))
			r.Post("/addresses", controllers.AddressCreate(svc.Addresses, logg))
			r.Put("/addresses/{addressID}", controllers.AddressUpdate(svc.Addresses, logg))
			r.Delete("/addresses/{addressID}", controllers.AddressDelete(svc.Addresses, logg))

			r.Post("/products/{productID}/reviews", controllers.ReviewCreate(svc.Reviews, svc.Profiles, logg))

			r.Get("/wishlist", controllers.WishlistGet(svc.Wishlist, logg))
			r.Get("/wishlist/ids", controllers.WishlistIDs(svc.Wishlist, logg))
			r.Put("/wishlist/{productID}", controllers.WishlistAdd(svc.Wishlist, logg))
			r.Delete("/wishlist/{productID}", controllers.WishlistRemove(svc.Wishlist, logg))

			r.Get("/cart", cartcontrollers.CartFetch(svc.Cart, logg))
			r.Delete("/cart", cartcontrollers.CartClear(svc.Cart, logg))
			r.Post("/cart/items", cartcontrollers.CartAddItem(svc.Cart, logg))
			r.Patch("/cart/items/{lineID}", cartcontrollers.CartSetQuantity(svc.Cart, logg))
			r.Delete("/cart/items/{lineID}", cartcontrollers.CartRemoveItem(svc.Cart, logg))
			r.Post("/cart/quote", cartcontrollers.CartQuote(svc.Cart, logg))

			r.Get("/orders", ordercontrollers.List(svc.Orders, logg))
			r.Get("/orders/{orderNumber}", ordercontrollers.Detail(svc.Orders, logg))
			r.Get("/orders/{orderNumber}/invoice", ordercontrollers.Invoice(svc.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RateLimit(checkoutPolicy, store, logg))
			r.Use(idempotent)

			r.Post("/checkout", checkoutcontrollers.Start(svc.Checkout, logg))
			r.Get("/checkout/{attemptID}", checkoutcontrollers.Get(svc.Checkout, logg))
			r.Put("/checkout/{attemptID}/details", checkoutcontrollers.SubmitDetails(svc.Checkout, logg))
			r.Post("/checkout/{attemptID}/payment", checkoutcontrollers.InitiatePayment(svc.Checkout, logg))
			r.Post("/checkout/{attemptID}/confirm", checkoutcontrollers.Confirm(svc.Checkout, logg))
			r.Post("/checkout/{attemptID}/abandon", checkoutcontrollers.Abandon(svc.Checkout, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Use(idempotent)

			r.Post("/admin/products", controllers.AdminCreateProduct(svc.Products, logg))
			r.Patch("/admin/products/{productID}", controllers.AdminUpdateProduct(svc.Products, logg))
			r.Delete("/admin/products/{productID}", controllers.AdminDeleteProduct(svc.Products, logg))
			r.Post("/admin/products/{productID}/images", controllers.AdminPresignProductImage(svc.Media, logg))
			r.Patch("/admin/orders/{orderNumber}/status", ordercontrollers.AdminUpdateStatus(svc.Orders, logg))
			r.Put("/admin/shipping-rates/{method}", controllers.AdminSetShippingRate(svc.Shipping, logg))
			r.Get("/admin/analytics/sales", analyticscontrollers.SalesSummary(svc.Analytics, logg))
		})
	})

	return r
}

// NewFunctionsRouter builds the service-to-service function endpoints.
func NewFunctionsRouter(cfg *config.Config, logg *logger.Logger, svc FunctionServices) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/health/live", controllers.HealthLive(cfg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ServiceToken(cfg.Functions.Token, logg))
		r.Post(functions.PathCreatePaymentOrder, functioncontrollers.CreatePaymentOrder(svc.Payments, logg))
		r.Post(functions.PathGenerateInvoice, functioncontrollers.GenerateInvoice(svc.Invoices, logg))
		r.Post(functions.PathSendOrderConfirmation, functioncontrollers.SendOrderConfirmation(svc.OrderMail, logg))
		r.Post(functions.PathSendContactConfirmation, functioncontrollers.SendContactConfirmation(svc.ContactMail, logg))
	})

	return r
}
