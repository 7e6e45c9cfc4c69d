package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/usecase"
)

// Handlers exposes the ingress HTTP surface: create and read by external
// id. It is a thin adapter; all semantics live in the usecase layer.
type Handlers struct {
	service *usecase.TransactionService
	logger  *zap.Logger
}

// NewHandlers creates the ingress handlers.
func NewHandlers(service *usecase.TransactionService, logger *zap.Logger) *Handlers {
	return &Handlers{service: service, logger: logger.Named("api")}
}

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// HandleCreate handles POST /transactions.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	value, fieldErrs := ValidateCreate(req)
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fieldErrs})
		return
	}

	projection, err := h.service.Create(r.Context(), usecase.CreateTransactionInput{
		AccountExternalIDDebit:  req.AccountExternalIDDebit,
		AccountExternalIDCredit: req.AccountExternalIDCredit,
		TransferTypeID:          req.TransferTypeID,
		Value:                   value,
	})
	if err != nil {
		h.logger.Error("failed to create transaction", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create transaction"})
		return
	}

	writeJSON(w, http.StatusCreated, projection)
}

// HandleGet handles GET /transactions/{id}.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("id")
	if !isUUIDv4(externalID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "transaction id must be a valid UUIDv4"})
		return
	}

	projection, err := h.service.Get(r.Context(), externalID)
	if errors.Is(err, usecase.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "transaction not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to read transaction",
			zap.String("transactionExternalId", externalID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read transaction"})
		return
	}

	writeJSON(w, http.StatusOK, projection)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
