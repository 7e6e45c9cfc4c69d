package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/cache"
	"github.com/khaeldev/transaction-service/internal/model"
	"github.com/khaeldev/transaction-service/internal/store"
)

func newTestService(t *testing.T) (*TransactionService, *store.MemoryStore, *cache.RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := store.NewMemoryStore()
	c := cache.NewRedisCache(client, time.Hour)
	return NewTransactionService(st, c, zap.NewNop()), st, c
}

func createInput(value string) CreateTransactionInput {
	return CreateTransactionInput{
		AccountExternalIDDebit:  "8f8e9a72-2c34-4f33-9e6b-0f6f1a2b3c4d",
		AccountExternalIDCredit: "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
		TransferTypeID:          2,
		Value:                   decimal.RequireFromString(value),
	}
}

func TestCreateAssignsIdentityAndPendingStatus(t *testing.T) {
	svc, _, _ := newTestService(t)

	p, err := svc.Create(context.Background(), createInput("500.00"))
	require.NoError(t, err)

	require.NotNil(t, p.TransactionExternalID)
	_, err = uuid.Parse(*p.TransactionExternalID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, p.TransactionStatus.Name)
	assert.Equal(t, "Type 2", p.TransactionType.Name)
	assert.Equal(t, "500", p.Value.String())
}

func TestGetPrefersCache(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	// The cache holds a decided projection the store does not know about;
	// a cached read must not touch the store.
	id := uuid.New().String()
	require.NoError(t, c.Merge(ctx, id, &model.TransactionProjection{
		TransactionStatus: &model.StatusInfo{Name: model.StatusApproved},
	}))

	p, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, p.TransactionStatus.Name)
}

func TestGetFallsBackToStoreOnMiss(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, createInput("120.50"))
	require.NoError(t, err)

	// Nothing has populated the cache yet; read-through must serve the
	// store's current state.
	p, err := svc.Get(ctx, *created.TransactionExternalID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, p.TransactionStatus.Name)
	assert.Equal(t, "120.5", p.Value.String())
}

func TestGetUnknownTransaction(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}
