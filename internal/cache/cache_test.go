package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaeldev/transaction-service/internal/model"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, ttl), mr
}

func statusPartial(s model.Status) *model.TransactionProjection {
	return &model.TransactionProjection{
		TransactionStatus: &model.StatusInfo{Name: s},
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	value := decimal.RequireFromString("120.50")
	id := "tx-1"
	require.NoError(t, c.Set(ctx, id, &model.TransactionProjection{
		TransactionExternalID: &id,
		Value:                 &value,
	}))

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Value)
	assert.True(t, value.Equal(*got.Value))
}

func TestMergeCreatesMissingEntry(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Merge(ctx, "tx-1", statusPartial(model.StatusApproved)))

	got, err := c.Get(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got.TransactionStatus)
	assert.Equal(t, model.StatusApproved, got.TransactionStatus.Name)
}

func TestMergePreservesExistingFields(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	value := decimal.RequireFromString("100")
	createdAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, c.Set(ctx, "tx-1", &model.TransactionProjection{
		TransactionType: &model.TypeInfo{Name: "Type 1"},
		Value:           &value,
		CreatedAt:       &createdAt,
	}))

	require.NoError(t, c.Merge(ctx, "tx-1", statusPartial(model.StatusApproved)))

	got, err := c.Get(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got.Value)
	assert.True(t, value.Equal(*got.Value))
	require.NotNil(t, got.CreatedAt)
	assert.Equal(t, createdAt, got.CreatedAt.UTC())
	require.NotNil(t, got.TransactionType)
	assert.Equal(t, "Type 1", got.TransactionType.Name)
	require.NotNil(t, got.TransactionStatus)
	assert.Equal(t, model.StatusApproved, got.TransactionStatus.Name)
}

func TestMergeSnapshotAfterVerdictKeepsDecision(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Merge(ctx, "tx-1", statusPartial(model.StatusRejected)))

	value := decimal.RequireFromString("1500")
	snapshot := &model.TransactionProjection{
		TransactionType:   &model.TypeInfo{Name: "Type 2"},
		TransactionStatus: &model.StatusInfo{Name: model.StatusPending},
		Value:             &value,
	}
	require.NoError(t, c.Merge(ctx, "tx-1", snapshot))

	got, err := c.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.TransactionStatus.Name)
	require.NotNil(t, got.Value)
	assert.True(t, value.Equal(*got.Value))
}

func TestMergeConcurrentDisjointFields(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()
	id := "tx-1"

	value := decimal.RequireFromString("250")
	snapshot := &model.TransactionProjection{
		TransactionType: &model.TypeInfo{Name: "Type 1"},
		Value:           &value,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			assert.NoError(t, c.Merge(ctx, id, snapshot))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			assert.NoError(t, c.Merge(ctx, id, statusPartial(model.StatusApproved)))
		}
	}()
	wg.Wait()

	// Neither writer's fields got clobbered by the other's
	// read-modify-write.
	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.TransactionStatus)
	assert.Equal(t, model.StatusApproved, got.TransactionStatus.Name)
	require.NotNil(t, got.Value)
	assert.True(t, value.Equal(*got.Value))
	require.NotNil(t, got.TransactionType)
	assert.Equal(t, "Type 1", got.TransactionType.Name)
}

func TestWritesApplyTTL(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Merge(ctx, "tx-1", statusPartial(model.StatusApproved)))
	ttl := mr.TTL("PK-tx-1")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, "tx-1")
	assert.ErrorIs(t, err, ErrMiss)
}
