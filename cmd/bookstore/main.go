// Package main запускает HTTP-сервер оформления заказов книжного магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/bookstore-checkout/internal/config"
	"github.com/mmeshcher/bookstore-checkout/internal/handler"
	"github.com/mmeshcher/bookstore-checkout/internal/middleware"
	"github.com/mmeshcher/bookstore-checkout/internal/payment"
	"github.com/mmeshcher/bookstore-checkout/internal/repository"
	"github.com/mmeshcher/bookstore-checkout/internal/service"
	"github.com/mmeshcher/bookstore-checkout/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	threshold, err := decimal.NewFromString(cfg.FreeDeliveryThreshold)
	if err != nil {
		sugar.Fatalw("invalid free delivery threshold", "error", err.Error())
	}
	deliveryFee, err := decimal.NewFromString(cfg.StandardDeliveryFee)
	if err != nil {
		sugar.Fatalw("invalid standard delivery fee", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	store, err := session.NewStore(cfg.RedisAddress)
	if err != nil {
		sugar.Fatalw("session store initialization error", "error", err.Error())
	}
	defer store.Close()

	payments := payment.NewClient(cfg.StripeAPIURL, cfg.StripeSecretKey)

	svc := service.NewService(repo, payments, service.Pricing{
		FreeDeliveryThreshold: threshold,
		StandardDeliveryFee:   deliveryFee,
		Currency:              cfg.StripeCurrency,
		PublicKey:             cfg.StripePublicKey,
	})

	sessions := middleware.NewSessions(cfg.SessionSecret)
	auth := middleware.NewAuth(cfg.SessionSecret)
	h := handler.NewHandler(svc, store, logger, sessions, auth)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting bookstore checkout server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
