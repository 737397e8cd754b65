package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/laofi/internal/auth"
	"github.com/vasiliy-maslov/laofi/internal/db"
	handler "github.com/vasiliy-maslov/laofi/internal/handler/http"
	"github.com/vasiliy-maslov/laofi/internal/notify"
	"github.com/vasiliy-maslov/laofi/internal/order"
	"github.com/vasiliy-maslov/laofi/internal/payment"
	"github.com/vasiliy-maslov/laofi/internal/payment/mercadopago"
	"github.com/vasiliy-maslov/laofi/internal/product"
	"github.com/vasiliy-maslov/laofi/internal/user"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var serveSkipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the order stream",
	Long: `Start the HTTP API.

Pending migrations are applied before the server starts unless --skip-migrations is set.

Examples:
  laofi serve
  laofi serve --env-file /etc/laofi.env --skip-migrations`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("env", cfg.App.Env).Str("version", Version).Msg("La Ofi starting...")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !serveSkipMigrations {
		if err := db.ApplyMigrations(cfg.Postgres); err != nil {
			return err
		}
	}

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()

	hub := notify.NewHub()
	defer hub.Close()

	mp := mercadopago.NewClient(cfg.MercadoPago)
	if !mp.Configured() {
		log.Warn().Msg("MP_ACCESS_TOKEN is not set; checkout and webhook verification will fail")
	}

	sessions, err := auth.NewManager(cfg.Session, cfg.App.IsProduction())
	if err != nil {
		return err
	}

	userSvc := user.NewService(user.NewRepository(pg.Pool), cfg.App.AdminEmails)
	productSvc := product.NewService(product.NewRepository(pg.Pool))
	orderSvc := order.NewService(order.NewRepository(pg.Pool), hub)

	router := handler.NewRouter(handler.Router{
		Sessions: sessions,
		Orders:   handler.NewOrderHandler(orderSvc),
		Payments: handler.NewPaymentHandler(
			payment.NewCheckout(mp, orderSvc, cfg.App.BaseURL, cfg.MercadoPago.Currency),
			payment.NewReconciler(mp, orderSvc),
		),
		Users:    handler.NewUserHandler(userSvc, sessions),
		Products: handler.NewProductHandler(productSvc),
		Stream:   hub,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", cfg.App.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		// Hijacked websocket connections are not tracked by Shutdown.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("La Ofi stopped gracefully")
	return nil
}
