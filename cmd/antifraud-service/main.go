package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/antifraud"
	"github.com/khaeldev/transaction-service/internal/config"
	"github.com/khaeldev/transaction-service/internal/logging"
	"github.com/khaeldev/transaction-service/internal/metrics"
	"github.com/khaeldev/transaction-service/internal/worker"
)

func main() {
	cfg, err := config.LoadAntifraudService()
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

	publisher := worker.NewKafkaPublisher(cfg.Kafka.Brokers, logger)
	defer publisher.Close()

	engine := antifraud.NewEngine(cfg.Threshold, publisher,
		cfg.Kafka.ChangeTopic, cfg.Kafka.VerdictTopic, logger)
	logger.Info("decision engine configured", zap.String("threshold", cfg.Threshold.String()))

	changeConsumer := worker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		cfg.Kafka.ChangeTopic, engine.HandleChange, logger)

	go func() {
		if err := changeConsumer.Run(ctx); err != nil {
			logger.Error("change consumer stopped", zap.Error(err))
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
