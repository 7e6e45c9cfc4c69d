package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/model"
)

// ChangeRelay emits a creation event for every freshly inserted
// transaction row. It stands in for an external change-data-capture
// process in local deployments: the poll, publish and mark-published
// steps give the same at-least-once creation stream a capture connector
// would produce.
type ChangeRelay struct {
	db        *pgxpool.Pool
	publisher Publisher
	topic     string
	table     string
	interval  time.Duration
	logger    *zap.Logger
}

// NewChangeRelay creates a relay publishing to the change topic.
func NewChangeRelay(db *pgxpool.Pool, pub Publisher, topic string, interval time.Duration, logger *zap.Logger) *ChangeRelay {
	return &ChangeRelay{
		db:        db,
		publisher: pub,
		topic:     topic,
		table:     "transactions",
		interval:  interval,
		logger:    logger.Named("change-relay"),
	}
}

// Start polls until ctx is cancelled.
func (r *ChangeRelay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.relayBatch(ctx)
		}
	}
}

func (r *ChangeRelay) relayBatch(ctx context.Context) {
	// Lock the batch so concurrent relay replicas do not double-publish
	// within one tick. Publishing before marking keeps delivery
	// at-least-once: a crash between the two re-publishes on restart.
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("failed to begin relay batch", zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT transaction_external_id, account_external_id_debit, account_external_id_credit,
			transfer_type_id, value::text, status, created_at
		FROM transactions
		WHERE change_published = FALSE
		ORDER BY created_at ASC
		LIMIT 50
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		r.logger.Error("failed to fetch unpublished transactions", zap.Error(err))
		return
	}

	var events []model.ChangeEvent
	for rows.Next() {
		var (
			ev        model.ChangeEvent
			value     string
			createdAt time.Time
		)
		if err := rows.Scan(&ev.TransactionExternalID, &ev.AccountExternalIDDebit,
			&ev.AccountExternalIDCredit, &ev.TransferTypeID, &value, &ev.Status, &createdAt); err != nil {
			r.logger.Error("failed to scan transaction row", zap.Error(err))
			continue
		}
		ev.Value = json.RawMessage(value)
		ev.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		ev.Op = model.ChangeOpCreate
		ev.Table = r.table
		ev.SourceTsMs = time.Now().UnixMilli()
		events = append(events, ev)
	}
	rows.Close()

	if len(events) == 0 {
		return
	}

	published := make([]string, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			r.logger.Error("failed to encode change event",
				zap.String("transactionExternalId", ev.TransactionExternalID), zap.Error(err))
			continue
		}
		if err := r.publisher.Publish(ctx, r.topic, ev.TransactionExternalID, payload); err != nil {
			r.logger.Error("failed to publish change event, will retry next tick",
				zap.String("transactionExternalId", ev.TransactionExternalID), zap.Error(err))
			continue
		}
		published = append(published, ev.TransactionExternalID)
	}

	if len(published) == 0 {
		return
	}

	if _, err := tx.Exec(ctx, `
		UPDATE transactions SET change_published = TRUE
		WHERE transaction_external_id = ANY($1)`, published); err != nil {
		r.logger.Error("failed to mark transactions published", zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("failed to commit relay batch", zap.Error(err))
		return
	}

	r.logger.Info("relayed change events", zap.Int("count", len(published)))
}
