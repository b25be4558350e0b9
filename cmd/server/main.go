// Package main implements the membership layer server: payment verification,
// the tier ledger, and the spend leaderboard behind a single HTTP surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "github.com/VanityClub/membership_layer/internal/app"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/app/httpapi"
	"github.com/VanityClub/membership_layer/internal/app/metrics"
	"github.com/VanityClub/membership_layer/internal/app/storage/postgres"
	"github.com/VanityClub/membership_layer/internal/config"
	"github.com/VanityClub/membership_layer/internal/gateway"
	"github.com/VanityClub/membership_layer/internal/middleware"
	"github.com/VanityClub/membership_layer/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Fatal("load configuration")
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.Log.Level, Format: cfg.Log.Format}, "server")

	catalog := tier.LoadCatalogOrDefault(cfg.TiersPath)

	stores := app.Stores{}
	if cfg.Database.URL != "" {
		pg, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		defer pg.Close()

		if err := pg.Migrate(); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
		stores.Intents = pg
		stores.Members = pg
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	stripeClient := gateway.NewStripeClient(gateway.StripeConfig{
		SecretKey: cfg.Stripe.SecretKey,
		BaseURL:   cfg.Stripe.BaseURL,
		Timeout:   cfg.Stripe.Timeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, stores, app.Options{
		Catalog:       catalog,
		Gateway:       stripeClient,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("initialise application")
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.WithField("component", "ratelimit"))
	stopCleanup := rateLimiter.StartCleanup(10 * time.Minute)
	defer stopCleanup()
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	auth := middleware.NewAuthMiddleware(cfg.Auth.SessionSecret, log.WithField("component", "auth"), []string{
		"/health",
		"/metrics",
		"/payments/webhook",
	})

	var handler http.Handler = httpapi.NewHandler(application)
	handler = auth.Handler(handler)
	handler = rateLimiter.Handler(handler)
	handler = cors.Handler(handler)
	handler = metrics.InstrumentHandler(handler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
