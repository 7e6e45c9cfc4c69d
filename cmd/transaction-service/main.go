package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/api"
	"github.com/khaeldev/transaction-service/internal/cache"
	"github.com/khaeldev/transaction-service/internal/config"
	"github.com/khaeldev/transaction-service/internal/consumer"
	"github.com/khaeldev/transaction-service/internal/db"
	"github.com/khaeldev/transaction-service/internal/logging"
	"github.com/khaeldev/transaction-service/internal/metrics"
	"github.com/khaeldev/transaction-service/internal/store"
	"github.com/khaeldev/transaction-service/internal/usecase"
	"github.com/khaeldev/transaction-service/internal/worker"
)

func main() {
	cfg, err := config.LoadTransactionService()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	txStore := store.NewPostgresStore(pool)
	readCache := cache.NewRedisCache(redisClient, cfg.CacheTTL)
	txService := usecase.NewTransactionService(txStore, readCache, logger)
	reconciler := consumer.NewReconciler(txStore, readCache,
		cfg.Kafka.ChangeTopic, cfg.Kafka.VerdictTopic, logger)

	// Each consumption path reads its topic on its own offset cursor.
	verdictConsumer := worker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		cfg.Kafka.VerdictTopic, reconciler.HandleVerdict, logger)
	snapshotConsumer := worker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		cfg.Kafka.ChangeTopic, reconciler.HandleChangeSnapshot, logger)

	go func() {
		if err := verdictConsumer.Run(ctx); err != nil {
			logger.Error("verdict consumer stopped", zap.Error(err))
			stop()
		}
	}()
	go func() {
		if err := snapshotConsumer.Run(ctx); err != nil {
			logger.Error("snapshot consumer stopped", zap.Error(err))
			stop()
		}
	}()

	if cfg.RelayEnabled {
		publisher := worker.NewKafkaPublisher(cfg.Kafka.Brokers, logger)
		defer publisher.Close()
		relay := worker.NewChangeRelay(pool, publisher, cfg.Kafka.ChangeTopic, cfg.RelayInterval, logger)
		go relay.Start(ctx)
		logger.Info("change relay enabled", zap.Duration("interval", cfg.RelayInterval))
	}

	handlers := api.NewHandlers(txService, logger)
	server := api.NewServer(cfg.HTTPPort, api.NewRouter(handlers), logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down http server", zap.Error(err))
	}
}
