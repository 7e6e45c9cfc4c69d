package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaeldev/transaction-service/internal/model"
)

func createFixture(t *testing.T, s *MemoryStore) *model.Transaction {
	t.Helper()
	tx, err := s.Create(context.Background(), CreateTransaction{
		TransactionExternalID:   "3f0e9a72-2c34-4f33-9e6b-0f6f1a2b3c4d",
		AccountExternalIDDebit:  "8f8e9a72-2c34-4f33-9e6b-0f6f1a2b3c4d",
		AccountExternalIDCredit: "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
		TransferTypeID:          1,
		Value:                   decimal.RequireFromString("500.00"),
	})
	require.NoError(t, err)
	return tx
}

func TestCreateStartsPending(t *testing.T) {
	s := NewMemoryStore()
	tx := createFixture(t, s)

	assert.Equal(t, model.StatusPending, tx.Status)
	assert.NotEmpty(t, tx.ID)
	assert.False(t, tx.CreatedAt.IsZero())
}

func TestFindByExternalID(t *testing.T) {
	s := NewMemoryStore()
	tx := createFixture(t, s)

	found, err := s.FindByExternalID(context.Background(), tx.TransactionExternalID)
	require.NoError(t, err)
	assert.Equal(t, tx.TransactionExternalID, found.TransactionExternalID)

	_, err = s.FindByExternalID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusIfPendingIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	tx := createFixture(t, s)
	ctx := context.Background()

	first, err := s.UpdateStatusIfPending(ctx, tx.TransactionExternalID, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, first.Status)

	// The second application is a no-op, not an error.
	second, err := s.UpdateStatusIfPending(ctx, tx.TransactionExternalID, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestUpdateStatusNeverDowngrades(t *testing.T) {
	s := NewMemoryStore()
	tx := createFixture(t, s)
	ctx := context.Background()

	_, err := s.UpdateStatusIfPending(ctx, tx.TransactionExternalID, model.StatusApproved)
	require.NoError(t, err)

	// A conflicting later verdict must not flip the decision.
	after, err := s.UpdateStatusIfPending(ctx, tx.TransactionExternalID, model.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, after.Status)
}

func TestUpdateStatusUnknownTransaction(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.UpdateStatusIfPending(context.Background(), "missing", model.StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnedTransactionsAreCopies(t *testing.T) {
	s := NewMemoryStore()
	tx := createFixture(t, s)

	tx.Status = model.StatusRejected

	found, err := s.FindByExternalID(context.Background(), tx.TransactionExternalID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, found.Status)
}
