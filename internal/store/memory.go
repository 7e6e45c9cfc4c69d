package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khaeldev/transaction-service/internal/model"
)

// MemoryStore is an in-process Store used by tests and the replay tool.
// It keeps the same guard semantics as PostgresStore: the status
// transition is checked and applied under one lock.
type MemoryStore struct {
	mu           sync.Mutex
	transactions map[string]*model.Transaction
}

// NewMemoryStore creates an empty in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transactions: make(map[string]*model.Transaction)}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateTransaction) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	tx := &model.Transaction{
		ID:                      uuid.New().String(),
		TransactionExternalID:   in.TransactionExternalID,
		AccountExternalIDDebit:  in.AccountExternalIDDebit,
		AccountExternalIDCredit: in.AccountExternalIDCredit,
		TransferTypeID:          in.TransferTypeID,
		Value:                   in.Value,
		Status:                  model.StatusPending,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	s.transactions[tx.TransactionExternalID] = tx

	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) FindByExternalID(ctx context.Context, externalID string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) UpdateStatusIfPending(ctx context.Context, externalID string, status model.Status) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	if tx.Status == model.StatusPending {
		tx.Status = status
		tx.UpdatedAt = time.Now().UTC()
	}
	cp := *tx
	return &cp, nil
}
