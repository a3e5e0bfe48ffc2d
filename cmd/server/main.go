package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/skald/internal"
	"github.com/dukerupert/skald/internal/domain"
	"github.com/dukerupert/skald/internal/events"
	"github.com/dukerupert/skald/internal/handler"
	"github.com/dukerupert/skald/internal/invoice"
	"github.com/dukerupert/skald/internal/middleware"
	"github.com/dukerupert/skald/internal/payment"
	"github.com/dukerupert/skald/internal/postgres"
	"github.com/dukerupert/skald/internal/routes"
	"github.com/dukerupert/skald/internal/service"
	"github.com/dukerupert/skald/internal/tracking"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := internal.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Msg("starting server")

	// Migrations run through database/sql; the application itself talks to
	// Postgres through the pgx pool.
	migrationDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	if err := internal.RunMigrations(migrationDB); err != nil {
		migrationDB.Close()
		return err
	}
	migrationDB.Close()
	logger.Info().Msg("migrations applied")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseUrl)
	if err != nil {
		return err
	}
	defer pool.Close()

	orderStore := postgres.NewOrderStore(pool)
	paymentStore := postgres.NewPaymentStore(pool)
	productStore := postgres.NewProductStore(pool)

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATS.Enabled {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		publisher = natsPublisher
	}
	defer publisher.Close()

	var tracker tracking.Provider
	if cfg.Tracking.APIKey != "" {
		tracker, err = tracking.NewAfterShipProvider(tracking.AfterShipConfig{
			APIKey:  cfg.Tracking.APIKey,
			BaseURL: cfg.Tracking.BaseURL,
			Timeout: cfg.Tracking.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("tracking provider not configured, reconciliation disabled")
	}

	var gateway payment.Gateway
	if cfg.Gateway.KeyID != "" && cfg.Gateway.KeySecret != "" {
		gateway, err = payment.NewRazorpayGateway(payment.RazorpayConfig{
			KeyID:     cfg.Gateway.KeyID,
			KeySecret: cfg.Gateway.KeySecret,
			BaseURL:   cfg.Gateway.BaseURL,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("payment gateway not configured, gateway payments disabled")
	}
	verifier, err := payment.NewVerifier(verifierSecret(cfg))
	if err != nil {
		return err
	}

	policy := domain.TransitionPolicy{AllowBackward: cfg.PermissiveTransitions}
	orderService, err := service.NewOrderService(orderStore, productStore, tracker, publisher, policy, logger)
	if err != nil {
		return err
	}
	paymentService, err := service.NewPaymentService(paymentStore, orderStore, gateway, verifier, orderService, publisher, logger)
	if err != nil {
		return err
	}
	invoiceRenderer, err := invoice.NewRenderer(orderStore, productStore, invoice.Company{
		Name:    cfg.Company.Name,
		Address: cfg.Company.Address,
		Email:   cfg.Company.Email,
		TaxID:   cfg.Company.TaxID,
	}, logger)
	if err != nil {
		return err
	}

	e := echo.New()
	routes.Setup(e, routes.Config{
		Handler:   handler.New(orderService, paymentService, invoiceRenderer, logger),
		JWTSecret: cfg.JWTSecret,
		Metrics:   middleware.NewMetrics("skald"),
	})

	return serve(e, cfg.Port, logger)
}

// verifierSecret falls back to a dev-only secret so unconfigured local runs
// still boot; production config validation rejects the empty secret.
func verifierSecret(cfg *internal.Config) string {
	if cfg.Gateway.KeySecret != "" {
		return cfg.Gateway.KeySecret
	}
	return "dev-gateway-secret"
}

func serve(e *echo.Echo, port uint16, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
