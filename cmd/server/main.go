package main

import (
	"database/sql"
	"net/http"
	"strings"

	"olkupay-be/internal/checkout"
	"olkupay-be/internal/config"
	"olkupay-be/internal/db"
	"olkupay-be/internal/logger"
	"olkupay-be/internal/metrics"
	"olkupay-be/internal/middleware"
	"olkupay-be/internal/order"
	"olkupay-be/internal/payment"
	"olkupay-be/internal/payment/taramoney"
	"olkupay-be/internal/payment/webhook"
	"olkupay-be/internal/utils"

	"go.uber.org/zap"
)

// Seams for tests.
var (
	initDBFunc      = db.InitDB
	startServerFunc = http.ListenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	router := newServer(cfg, database)

	logger.L().Info("payment server listening", zap.String("port", cfg.AppPort))
	return startServerFunc(":"+cfg.AppPort, router)
}

// newServer wires the stores, the provider registry and the HTTP surface.
func newServer(cfg *config.Config, database *sql.DB) http.Handler {
	store := order.NewRepository(database)
	webhookRepo := payment.NewRepository(database)

	registry := payment.NewRegistry()
	reconciler := payment.NewReconciler(store)

	if cfg.EnableOrderLinks || cfg.EnableMobileMoney {
		creds := cfg.TaraCredentials()
		registry.Register(taramoney.New(taramoney.Config{
			APIKey:            creds.APIKey,
			BusinessID:        creds.BusinessID,
			WebhookSecret:     cfg.WebhookSecret,
			EnableMobileMoney: cfg.EnableMobileMoney,
			ReturnURL:         cfg.ReturnURL,
			WebhookURL:        webhookURL(cfg.WebhookBaseURL, taramoney.ProviderID),
		}, nil, store))
	} else {
		logger.L().Warn("taramoney disabled: both payment channels are turned off")
	}

	webhookStats := &metrics.WebhookStats{}
	checkoutStats := &metrics.CheckoutStats{}

	webhooks := make(map[string]http.Handler)
	for _, id := range registry.IDs() {
		provider, _ := registry.Get(id)
		webhooks[id] = webhook.NewHandler(provider, reconciler, webhookRepo, webhookStats)
	}

	checkoutSvc := checkout.NewService(store, registry)
	checkoutHandler := checkout.NewHandler(checkoutSvc, checkoutStats)

	return setupRouter(checkoutHandler, webhooks, webhookStats, checkoutStats)
}

// setupRouter mounts the public endpoints and the middleware chain.
func setupRouter(
	checkoutHandler http.Handler,
	webhooks map[string]http.Handler,
	webhookStats *metrics.WebhookStats,
	checkoutStats *metrics.CheckoutStats,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("/checkout", checkoutHandler)

	for id, h := range webhooks {
		mux.Handle("/webhook/"+id, h)
	}

	mux.Handle("/stats", middleware.RequireRole("admin",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			utils.WriteJSON(w, http.StatusOK, map[string]any{
				"webhooks": webhookStats.Snapshot(),
				"checkout": checkoutStats.Snapshot(),
			})
		}),
	))

	return logger.RequestIDMiddleware(
		middleware.LoggingMiddleware(
			middleware.AuthMiddleware(
				middleware.RateLimitMiddleware(mux),
			),
		),
	)
}

func webhookURL(base, providerID string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/webhook/" + providerID
}
