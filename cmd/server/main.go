package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery-store/config"
	"gallery-store/internal/api"
	"gallery-store/internal/auth"
	"gallery-store/internal/broker"
	"gallery-store/internal/live"
	"gallery-store/internal/ratelimit"
	"gallery-store/internal/redisclient"
	"gallery-store/internal/seed"
	"gallery-store/internal/service"
	"gallery-store/internal/store"
	"gallery-store/internal/util"
	"gallery-store/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultSessionSecret = "change-me-in-production"

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting gallery store",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Database.Driver))

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(util.TracerConfig{
			ServiceName: cfg.Observ.ServiceName,
			Endpoint:    cfg.Observ.JaegerEndpoint,
			Environment: cfg.Server.Env,
			SampleRatio: cfg.Observ.TraceSampleRatio,
		})
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store ready")

	if cfg.Auth.SessionSecret == defaultSessionSecret {
		logger.Warn("SESSION_SECRET is not set, sessions are signed with the default secret")
	}
	tokens := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)

	var (
		productCache   service.ProductCache
		sessionRevoker service.SessionRevoker
		otpLimiter     service.Limiter = ratelimit.NewKeyedLimiter(
			ratelimit.PerWindow(cfg.Business.OTPIssueLimit, cfg.Business.OTPIssueWindow))
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ProductCacheTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		productCache = redisClient
		sessionRevoker = redisClient
		otpLimiter = redisClient.NewRateLimiter("otp", cfg.Business.OTPIssueLimit, cfg.Business.OTPIssueWindow)
	}

	hub := live.NewHub(cfg.Server.CORSOrigins)
	userService := service.NewUserService(db, tokens)
	if sessionRevoker != nil {
		userService.SetSessionRevoker(sessionRevoker)
	}
	productService := service.NewProductService(db, productCache)
	eventWorker := worker.NewOrderEventWorker(db, productService, hub)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var sender broker.Sender
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		sender = producer
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		go func() {
			if err := eventWorker.Start(workerCtx, consumer); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Order event worker error", zap.Error(err))
			}
		}()
	} else {
		sender = broker.NewLocalBus(eventWorker.HandleMessage)
		logger.Info("No Kafka brokers configured, handling order events in-process")
	}
	eventPublisher := broker.NewEventPublisher(sender)

	services := api.Services{
		Users:     userService,
		Products:  productService,
		Carts:     service.NewCartService(db, cfg.Business.ShippingFee),
		OTPs:      service.NewOTPService(db, otpLimiter, cfg.Business.OTPTTL),
		Orders:    service.NewOrderService(db, eventPublisher, cfg.Business.ShippingFee),
		Analytics: service.NewAnalyticsService(db, cfg.Business.RevenueDays),
	}

	if cfg.Server.SeedOnStart {
		err := seed.Run(ctx, db, userService, seed.Options{
			AdminUsername: cfg.Auth.AdminUsername,
			AdminPassword: cfg.Auth.AdminPassword,
		})
		if err != nil {
			logger.Fatal("Failed to seed store", zap.Error(err))
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	opts := api.Options{
		CORSOrigins:   cfg.Server.CORSOrigins,
		ExposeOTPCode: cfg.Server.OTPExposeCode,
		CookieSecure:  cfg.Server.CookieSecure,
	}
	if cfg.Server.RateLimitPerMin > 0 {
		rl := ratelimit.PerWindow(cfg.Server.RateLimitPerMin, time.Minute)
		if cfg.Server.RateLimitBurst > 0 {
			rl.Burst = cfg.Server.RateLimitBurst
		}
		opts.RateLimit = &rl
	}

	handler := api.NewHandler(services, db, hub, opts)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	hub.Close()
	workerCancel()
	if err := eventWorker.Stop(); err != nil {
		logger.Error("Error stopping order event worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
