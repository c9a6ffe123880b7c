package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"lmp-be/internal/accounting"
	"lmp-be/internal/config"
	"lmp-be/internal/db"
	"lmp-be/internal/delivery"
	"lmp-be/internal/logger"
	"lmp-be/internal/metrics"
	"lmp-be/internal/middleware"
	"lmp-be/internal/notification"
	"lmp-be/internal/order"
	"lmp-be/internal/payment"
	"lmp-be/internal/payment/webhook"
	"lmp-be/internal/transport"
	"lmp-be/internal/utils"
	"lmp-be/internal/verification"
	"lmp-be/internal/zone"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(addr string, handler http.Handler) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
		}
		return srv.ListenAndServe()
	}
	dialSenderFunc = func(url, exchange string) (notification.Sender, func(), error) {
		s, err := notification.DialAMQP(url, exchange)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	var sender notification.Sender
	if cfg.AMQPURL != "" {
		s, closeFn, err := dialSenderFunc(cfg.AMQPURL, cfg.NotificationExchange)
		if err != nil {
			return fmt.Errorf("notification broker: %w", err)
		}
		defer closeFn()
		sender = s
	} else {
		logger.L().Warn("AMQP_URL not set, order confirmations will only be logged")
	}

	router, err := newServer(cfg, database, sender)
	if err != nil {
		return err
	}

	logger.L().Info("server running", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	return startServerFunc(":"+cfg.AppPort, router)
}

type handlers struct {
	orders     *order.Handler
	checkout   *payment.CheckoutHandler
	webhook    *webhook.Handler
	deliveries *delivery.Handler
	accounting *accounting.Handler
	metrics    *metrics.Pipeline
}

// newServer builds the dependency graph and returns the HTTP router.
func newServer(cfg *config.Config, database *sql.DB, sender notification.Sender) (http.Handler, error) {
	pipe := metrics.NewPipeline()

	gateway, err := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}

	deliverySvc := delivery.NewService(delivery.NewRepository(database), pipe)

	trigger := accounting.NewTrigger(
		accounting.NewHTTPSyncer(cfg.AccountingSyncURL, accounting.NewSettingsRepository(database), nil),
	)

	zones := zone.NewValidator(cfg.ServiceAreaZips)
	logger.L().Info("service area loaded", zap.Int("zips", zones.Size()))

	deps := order.Dependencies{
		Zones:            zones,
		Verifier:         verification.NewTurnstileVerifier(cfg.TurnstileSecret),
		MinOrderQuantity: cfg.MinOrderQuantity,
		Deliveries:       deliverySvc,
		Notifier:         notification.NewDispatcher(sender, cfg.MailFrom),
		Metrics:          pipe,
	}
	if cfg.AccountingSyncURL != "" {
		deps.Accounting = trigger
	}

	orderSvc := order.NewService(order.NewRepository(database), deps)

	return setupRouter(cfg, handlers{
		orders:     order.NewHandler(orderSvc, deliverySvc),
		checkout:   payment.NewCheckoutHandler(orderSvc, gateway, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
		webhook:    webhook.NewWebhookHandler(orderSvc, gateway, payment.NewRepository(database), pipe),
		deliveries: delivery.NewHandler(deliverySvc),
		accounting: accounting.NewHandler(trigger),
		metrics:    pipe,
	}), nil
}

func setupRouter(cfg *config.Config, h handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(transport.ClientIPMiddleware(cfg.TrustedProxies))
	r.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	r.Use(middleware.RateLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.orders.CreateOrder)
		r.Post("/orders/{id}/checkout", h.checkout.CreateCheckout)
		r.Post("/webhooks/stripe", h.webhook.StripeWebhookHandler)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/orders/{id}", h.orders.GetOrder)
			r.Post("/accounting/sync", h.accounting.Sync)
			r.Post("/deliveries/reconcile", h.deliveries.Reconcile)
			r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				utils.WriteJSON(w, http.StatusOK, map[string]any{
					"success": true,
					"metrics": h.metrics.Snapshot(),
				})
			})
		})
	})

	return r
}
