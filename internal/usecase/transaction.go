package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/cache"
	"github.com/khaeldev/transaction-service/internal/metrics"
	"github.com/khaeldev/transaction-service/internal/model"
	"github.com/khaeldev/transaction-service/internal/store"
)

// ErrNotFound is returned when a transaction does not exist anywhere.
var ErrNotFound = errors.New("transaction not found")

// CreateTransactionInput is the validated create request.
type CreateTransactionInput struct {
	AccountExternalIDDebit  string
	AccountExternalIDCredit string
	TransferTypeID          int
	Value                   decimal.Decimal
}

// TransactionService is the application service behind the ingress API.
// It owns the create path and the cache-aside read path; status changes
// happen only through the reconciler.
type TransactionService struct {
	store  store.Store
	cache  cache.Cache
	logger *zap.Logger
}

// NewTransactionService creates a TransactionService.
func NewTransactionService(st store.Store, c cache.Cache, logger *zap.Logger) *TransactionService {
	return &TransactionService{store: st, cache: c, logger: logger.Named("transactions")}
}

// Create persists a new PENDING transaction under a freshly assigned
// external identifier and returns its projection.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (*model.TransactionProjection, error) {
	tx, err := s.store.Create(ctx, store.CreateTransaction{
		TransactionExternalID:   uuid.New().String(),
		AccountExternalIDDebit:  in.AccountExternalIDDebit,
		AccountExternalIDCredit: in.AccountExternalIDCredit,
		TransferTypeID:          in.TransferTypeID,
		Value:                   in.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	metrics.TransactionsCreatedTotal.Inc()
	s.logger.Info("transaction created",
		zap.String("transactionExternalId", tx.TransactionExternalID),
		zap.String("value", tx.Value.String()))

	return model.ProjectTransaction(tx), nil
}

// Get serves a read with the cache-aside strategy: cache first, store on
// miss. The read path does not repopulate the cache; population happens
// through the reconciler merge paths.
func (s *TransactionService) Get(ctx context.Context, externalID string) (*model.TransactionProjection, error) {
	p, err := s.cache.Get(ctx, externalID)
	if err == nil {
		s.logger.Debug("cache hit", zap.String("transactionExternalId", externalID))
		return p, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Error("cache read failed, falling back to store",
			zap.String("transactionExternalId", externalID), zap.Error(err))
	}

	tx, err := s.store.FindByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", externalID, err)
	}
	return model.ProjectTransaction(tx), nil
}
