// Command replay demonstrates that verdict delivery is idempotent: the
// same verdict event is applied twice against a fresh pipeline, and the
// second delivery must be a no-op that leaves state and readers intact.
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/cache"
	"github.com/khaeldev/transaction-service/internal/consumer"
	"github.com/khaeldev/transaction-service/internal/model"
	"github.com/khaeldev/transaction-service/internal/store"
	"github.com/khaeldev/transaction-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		log.Fatalf("failed to start embedded redis: %v", err)
	}
	defer mr.Close()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	readCache := cache.NewRedisCache(client, time.Hour)
	txStore := store.NewMemoryStore()
	txService := usecase.NewTransactionService(txStore, readCache, logger)
	reconciler := consumer.NewReconciler(txStore, readCache,
		"transactions.public.transactions", "transaction.validated", logger)

	created, err := txService.Create(ctx, usecase.CreateTransactionInput{
		AccountExternalIDDebit:  "8f8e9a72-2c34-4f33-9e6b-0f6f1a2b3c4d",
		AccountExternalIDCredit: "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
		TransferTypeID:          1,
		Value:                   decimal.RequireFromString("500.00"),
	})
	if err != nil {
		log.Fatalf("failed to create transaction: %v", err)
	}
	id := *created.TransactionExternalID

	payload, _ := json.Marshal(model.VerdictEvent{
		TransactionExternalID: id,
		Status:                model.VerdictApproved,
	})

	log.Println("1st delivery:")
	if err := reconciler.HandleVerdict(ctx, payload); err != nil {
		log.Fatalf("first delivery failed: %v", err)
	}

	log.Println("2nd delivery (redelivery after a simulated crash before commit):")
	if err := reconciler.HandleVerdict(ctx, payload); err != nil {
		log.Fatalf("second delivery failed: %v", err)
	}

	final, err := txService.Get(ctx, id)
	if err != nil {
		log.Fatalf("failed to read final state: %v", err)
	}
	out, _ := json.MarshalIndent(final, "", "  ")
	log.Printf("final projection:\n%s", out)
}
