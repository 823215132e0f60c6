package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/eaglebank/ledger-service/internal/command"
	"github.com/eaglebank/ledger-service/internal/config"
	"github.com/eaglebank/ledger-service/internal/handler"
	"github.com/eaglebank/ledger-service/internal/query"
	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/logger"
	"github.com/eaglebank/ledger-service/shared/middleware"
	redisClient "github.com/eaglebank/ledger-service/shared/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const consumerGroup = "ledger-service-group"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := repository.NewInMemoryAccountStore()

	var (
		projector command.AccountProjector
		publisher command.EventPublisher
		readRepo  *repository.AccountReadRepository
		redis     *redisClient.Client
	)
	if cfg.RedisEnabled() {
		redis, err = redisClient.NewClient(ctx, redisClient.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redis.Close()

		readRepo = repository.NewAccountReadRepository(redis.Client, cfg.ProcessedTTL, zlog.Named("read-repo"))
		projector = readRepo
		publisher = events.NewPublisher(redis.Client)
		zlog.Info("redis enabled", zap.String("addr", cfg.RedisAddr))
	}

	commandSvc := command.NewAccountCommandService(store, projector, publisher, zlog.Named("commands"))
	querySvc := query.NewAccountQueryService(store)

	if cfg.TransferStreamEnabled {
		intake := command.NewTransferRequestHandler(commandSvc, readRepo, zlog.Named("transfer-intake"))
		subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
			Group:        consumerGroup,
			Consumer:     cfg.ConsumerName,
			Stream:       events.TransferRequestsStream,
			Handler:      intake.Handle,
			ClaimMinIdle: cfg.ReclaimMinIdle,
			Logger:       zlog.Named("subscriber"),
		})
		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("subscriber stopped", zap.Error(err))
			}
		}()
	}

	var auth gin.HandlerFunc
	if cfg.AuthEnabled() {
		auth = middleware.AuthMiddleware([]byte(cfg.JWTSecret))
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(handler.NewAccountHandler(commandSvc, querySvc), auth, zlog)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zlog.Info("ledger service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newRouter mounts the account API under /api/v1. auth may be nil.
func newRouter(accounts *handler.AccountHandler, auth gin.HandlerFunc, zlog *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(zlog))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	if auth != nil {
		v1.Use(auth)
	}
	{
		v1.POST("/accounts", accounts.CreateAccount)
		v1.GET("/accounts/:accountId", accounts.GetAccount)
		v1.DELETE("/accounts/:accountId", accounts.DeleteAccount)
		v1.GET("/accounts/:accountId/state", accounts.GetAccountState)
		v1.PUT("/accounts/:accountId/state", accounts.SetAccountState)
		v1.POST("/accounts/:accountId/transfers", accounts.Transfer)
	}

	return router
}
