package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursepay-bot-backend/internal/bot"
	"coursepay-bot-backend/internal/common/config"
	"coursepay-bot-backend/internal/common/logger"
	"coursepay-bot-backend/internal/features/catalog"
	paymentredis "coursepay-bot-backend/internal/features/payment/repository/redis"
	paymentsvc "coursepay-bot-backend/internal/features/payment/service"
	"coursepay-bot-backend/internal/features/stats"
	userredis "coursepay-bot-backend/internal/features/user/repository/redis"
	usersvc "coursepay-bot-backend/internal/features/user/service"
	httpapi "coursepay-bot-backend/internal/http"
	redisplatform "coursepay-bot-backend/internal/platform/redis"
	"coursepay-bot-backend/internal/platform/telegram"
	"coursepay-bot-backend/internal/platform/yookassa"
)

func main() {
	cfg := config.Load()
	logger.Init("coursepay-bot-backend", cfg.Debug)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := redisplatform.Open(ctx,
		fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		cfg.Redis.Password, cfg.Redis.DB)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Msg("Redis connection established")

	userRepo := userredis.NewUserRepository(redisClient)
	paymentRepo := paymentredis.NewPaymentRepository(redisClient)

	tgClient := telegram.NewClient(cfg.Telegram.BotToken)
	gateway := yookassa.NewClient(cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey, cfg.YooKassa.ReturnURL)
	cat := catalog.Default()

	userService := usersvc.NewService(userRepo)
	paymentService := paymentsvc.NewService(paymentRepo, gateway, userService, cat)
	statsService := stats.NewService(userRepo, paymentRepo)

	reconciler := paymentsvc.NewReconciler(
		paymentRepo, gateway, tgClient,
		cfg.Reconciler.Interval, cfg.Reconciler.GatewayTimeout,
	)
	reconciler.Start()

	courseBot := bot.New(
		tgClient, userService, paymentService, statsService, cat,
		cfg.Admin.Password, cfg.Telegram.PollTimeout,
	)
	courseBot.Start()

	router := httpapi.NewRouter(statsService, redisClient, cfg.Admin.Password, cfg.Server.Origin, cfg.Debug)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting admin HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start admin HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	courseBot.Stop()
	reconciler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Admin HTTP server forced to shutdown")
	}

	logger.Info().Msg("Exited")
}
