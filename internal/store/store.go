package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/khaeldev/transaction-service/internal/model"
)

// ErrNotFound is returned when no transaction exists for the given
// external identifier.
var ErrNotFound = errors.New("transaction not found")

// CreateTransaction carries the fields the ingress API supplies; the store
// assigns the external identifier, the PENDING status and timestamps.
type CreateTransaction struct {
	TransactionExternalID   string
	AccountExternalIDDebit  string
	AccountExternalIDCredit string
	TransferTypeID          int
	Value                   decimal.Decimal
}

// Store is the transaction store contract. UpdateStatusIfPending is the
// idempotency guard of the whole pipeline: it must be a single atomic
// conditional write, and it returns the unchanged record (not an error)
// when the transaction is already decided.
type Store interface {
	Create(ctx context.Context, in CreateTransaction) (*model.Transaction, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Transaction, error)
	UpdateStatusIfPending(ctx context.Context, externalID string, status model.Status) (*model.Transaction, error)
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const transactionColumns = `id, transaction_external_id, account_external_id_debit,
	account_external_id_credit, transfer_type_id, value, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, in CreateTransaction) (*model.Transaction, error) {
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, `
		INSERT INTO transactions (transaction_external_id, account_external_id_debit,
			account_external_id_credit, transfer_type_id, value, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+transactionColumns,
		in.TransactionExternalID, in.AccountExternalIDDebit, in.AccountExternalIDCredit,
		in.TransferTypeID, in.Value, model.StatusPending, now)

	tx, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*model.Transaction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE transaction_external_id = $1`, externalID)

	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %s: %w", externalID, err)
	}
	return tx, nil
}

// UpdateStatusIfPending performs the PENDING guard as one conditional
// UPDATE so two concurrent redeliveries cannot both observe PENDING and
// both transition. When the guard does not match, the current row is
// re-read and returned unchanged; duplicate delivery is a no-op.
func (s *PostgresStore) UpdateStatusIfPending(ctx context.Context, externalID string, status model.Status) (*model.Transaction, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = now()
		WHERE transaction_external_id = $1 AND status = $3
		RETURNING `+transactionColumns,
		externalID, status, model.StatusPending)

	tx, err := scanTransaction(row)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update status of %s: %w", externalID, err)
	}

	// Guard did not match: either the row is absent or already decided.
	return s.FindByExternalID(ctx, externalID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var tx model.Transaction
	err := row.Scan(
		&tx.ID, &tx.TransactionExternalID, &tx.AccountExternalIDDebit,
		&tx.AccountExternalIDCredit, &tx.TransferTypeID, &tx.Value,
		&tx.Status, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
