package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/cache"
	"github.com/khaeldev/transaction-service/internal/model"
	"github.com/khaeldev/transaction-service/internal/store"
	"github.com/khaeldev/transaction-service/internal/usecase"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := usecase.NewTransactionService(
		store.NewMemoryStore(),
		cache.NewRedisCache(client, time.Hour),
		zap.NewNop())
	return NewRouter(NewHandlers(svc, zap.NewNop()))
}

const createBody = `{
	"accountExternalIdDebit": "8f8e9a72-2c34-4f33-9e6b-0f6f1a2b3c4d",
	"accountExternalIdCredit": "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
	"transferTypeId": 1,
	"value": 500.00
}`

func TestCreateTransaction(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var p model.TransactionProjection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.NotNil(t, p.TransactionExternalID)
	_, err := uuid.Parse(*p.TransactionExternalID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, p.TransactionStatus.Name)
	assert.Equal(t, "Type 1", p.TransactionType.Name)
}

func TestCreateTransactionInvalidBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransactionValidationErrors(t *testing.T) {
	router := newTestRouter(t)

	body := `{"accountExternalIdDebit": "nope", "accountExternalIdCredit": "also-nope", "transferTypeId": 0, "value": 100.555}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error  string       `json:"error"`
		Fields []FieldError `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Len(t, resp.Fields, 4)
}

func TestGetTransaction(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.TransactionProjection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req = httptest.NewRequest(http.MethodGet, "/transactions/"+*created.TransactionExternalID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got model.TransactionProjection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *created.TransactionExternalID, *got.TransactionExternalID)
	assert.Equal(t, model.StatusPending, got.TransactionStatus.Name)
}

func TestGetTransactionNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/transactions/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTransactionInvalidID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/transactions/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
