package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/cache"
	"github.com/khaeldev/transaction-service/internal/metrics"
	"github.com/khaeldev/transaction-service/internal/model"
	"github.com/khaeldev/transaction-service/internal/store"
)

// Reconciler applies verdict events and creation snapshots to the
// transaction store and the read cache. Both handlers are idempotent so
// redelivered messages are safe; redelivery is expected, not exceptional.
//
// Cache failures after a successful store mutation are logged but not
// returned: retrying the message would only re-run a store no-op, and a
// reader recovers through the store fallback anyway.
type Reconciler struct {
	store        store.Store
	cache        cache.Cache
	changeTopic  string
	verdictTopic string
	logger       *zap.Logger
}

// NewReconciler creates a Reconciler. Topic names are only used to label
// metrics for the consumed streams.
func NewReconciler(st store.Store, c cache.Cache, changeTopic, verdictTopic string, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:        st,
		cache:        c,
		changeTopic:  changeTopic,
		verdictTopic: verdictTopic,
		logger:       logger.Named("reconciler"),
	}
}

// HandleVerdict consumes one verdict event. The store transition is
// guarded: a transaction that is already decided is left unchanged and
// the duplicate delivery counts as success.
func (r *Reconciler) HandleVerdict(ctx context.Context, payload []byte) error {
	var ev model.VerdictEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(r.verdictTopic).Inc()
		r.logger.Debug("ignoring undecodable verdict event", zap.Error(err))
		return nil
	}
	if ev.TransactionExternalID == "" || ev.Status == "" {
		metrics.EventsDroppedTotal.WithLabelValues(r.verdictTopic).Inc()
		r.logger.Debug("ignoring verdict event with missing fields")
		return nil
	}

	status, err := ev.Status.ToStatus()
	if err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(r.verdictTopic).Inc()
		r.logger.Debug("ignoring verdict event", zap.Error(err))
		return nil
	}

	tx, err := r.store.UpdateStatusIfPending(ctx, ev.TransactionExternalID, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("verdict for unknown transaction %s: %w", ev.TransactionExternalID, err)
		}
		return fmt.Errorf("failed to apply verdict for %s: %w", ev.TransactionExternalID, err)
	}

	if tx.Status != status {
		metrics.DuplicateVerdictsTotal.Inc()
		r.logger.Warn("transaction already decided, ignoring verdict",
			zap.String("transactionExternalId", ev.TransactionExternalID),
			zap.String("currentStatus", string(tx.Status)),
			zap.String("verdict", string(ev.Status)))
	} else {
		r.logger.Info("transaction status updated",
			zap.String("transactionExternalId", ev.TransactionExternalID),
			zap.String("status", string(tx.Status)))
	}

	partial := &model.TransactionProjection{
		TransactionStatus: &model.StatusInfo{Name: tx.Status},
	}
	if err := r.cache.Merge(ctx, ev.TransactionExternalID, partial); err != nil {
		r.logger.Error("failed to merge verdict into cache, relying on read-through",
			zap.String("transactionExternalId", ev.TransactionExternalID), zap.Error(err))
	}
	return nil
}

// HandleChangeSnapshot consumes one creation event and warms the cache
// with the full transaction detail. It never writes the store: the store
// already holds the authoritative row from the original create call.
func (r *Reconciler) HandleChangeSnapshot(ctx context.Context, payload []byte) error {
	var ev model.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(r.changeTopic).Inc()
		r.logger.Debug("ignoring undecodable change event", zap.Error(err))
		return nil
	}
	if ev.Op != model.ChangeOpCreate || !ev.HasValue() || ev.TransactionExternalID == "" {
		metrics.EventsDroppedTotal.WithLabelValues(r.changeTopic).Inc()
		r.logger.Debug("ignoring change event",
			zap.String("op", ev.Op), zap.Bool("hasValue", ev.HasValue()))
		return nil
	}

	value, err := ev.DecimalValue()
	if err != nil {
		return fmt.Errorf("invalid value %s for %s: %w", string(ev.Value), ev.TransactionExternalID, err)
	}

	id := ev.TransactionExternalID
	partial := &model.TransactionProjection{
		TransactionExternalID: &id,
		TransactionType:       &model.TypeInfo{Name: model.TypeName(ev.TransferTypeID)},
		Value:                 &value,
	}
	if ev.Status.Valid() {
		partial.TransactionStatus = &model.StatusInfo{Name: ev.Status}
	}
	if ev.CreatedAt != "" {
		if createdAt, err := time.Parse(time.RFC3339Nano, ev.CreatedAt); err == nil {
			partial.CreatedAt = &createdAt
		}
	}

	if err := r.cache.Merge(ctx, id, partial); err != nil {
		return fmt.Errorf("failed to warm cache for %s: %w", id, err)
	}

	r.logger.Debug("cache warmed from creation snapshot",
		zap.String("transactionExternalId", id))
	return nil
}
