package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"baklava-be/internal/cart"
	"baklava-be/internal/checkout"
	"baklava-be/internal/config"
	"baklava-be/internal/db"
	"baklava-be/internal/email"
	"baklava-be/internal/handler"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"
	"baklava-be/internal/middleware"
	"baklava-be/internal/order"
	"baklava-be/internal/payment"
	"baklava-be/internal/payment/webhook"
	"baklava-be/internal/product"
	"baklava-be/internal/storage"
	"baklava-be/internal/user"

	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = startServer
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

	if cfg.JWTSecret != "" {
		// user.GenerateJWT/ParseJWT read the secret from the environment.
		if err := os.Setenv("JWT_SECRET", cfg.JWTSecret); err != nil {
			return fmt.Errorf("set JWT_SECRET: %w", err)
		}
	}

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := newServer(ctx, cfg, database)

	addr := ":" + cfg.AppPort
	logger.L().Info("server starting", zap.String("addr", addr), zap.String("env", cfg.AppEnv))
	return startServerFunc(ctx, addr, router)
}

func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) http.Handler {
	counters := metrics.NewRegistry()
	mailer := email.NewSender(cfg.ResendAPIKey, cfg.EmailFrom)

	var images storage.ImageStore
	if cfg.AWSS3Bucket != "" {
		store, err := storage.NewS3ImageStore(ctx, storage.S3Options{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.AWSS3Bucket,
		})
		if err != nil {
			logger.L().Error("image storage disabled", zap.Error(err))
		} else {
			images = store
		}
	} else {
		logger.L().Warn("AWS_S3_BUCKET is empty, product image upload is disabled")
	}

	userRepo := user.NewRepository(database)
	userSvc := user.NewService(userRepo, mailer, cfg.AdminEmail, counters)

	productRepo := product.NewRepository(database)
	productSvc := product.NewService(productRepo, images)

	cartSvc := cart.NewService(productSvc, cfg.TaxRateBP)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, cartSvc, order.Options{
		CancelMode: order.CancelMode(cfg.OrderCancelMode),
		Mailer:     mailer,
		Counters:   counters,
	})

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	paymentRepo := payment.NewRepository(database)
	webhookHandler := webhook.NewWebhookHandler(orderSvc, gateway, paymentRepo, counters)

	checkoutSvc := checkout.NewService(orderSvc, cartSvc, gateway, checkout.Options{
		BaseURL:  cfg.AppBaseURL,
		Currency: cfg.PaymentCurrency,
		Counters: counters,
	})

	limiter := middleware.NewLimiter()
	go limiter.Run(ctx)

	return handler.NewRouter(handler.Deps{
		Users:        userSvc,
		Products:     productSvc,
		Cart:         cartSvc,
		Orders:       orderSvc,
		Checkout:     checkoutSvc,
		Webhook:      webhookHandler.PaymentWebhookHandler,
		Counters:     counters,
		Limiter:      limiter,
		CORSOrigins:  []string{cfg.CORSOrigin},
		SecureCookie: cfg.IsProduction(),
	})
}

func startServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
