package antifraud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/metrics"
	"github.com/khaeldev/transaction-service/internal/model"
	"github.com/khaeldev/transaction-service/internal/worker"
)

// Engine turns creation events into verdicts. It only judges; persistence
// stays with the transaction service, so the engine's sole side effect is
// publishing to the verdict topic.
type Engine struct {
	threshold    decimal.Decimal
	publisher    worker.Publisher
	changeTopic  string
	verdictTopic string
	logger       *zap.Logger
}

// NewEngine creates a decision engine with a fixed threshold. changeTopic
// is only used to label metrics for the consumed stream.
func NewEngine(threshold decimal.Decimal, pub worker.Publisher, changeTopic, verdictTopic string, logger *zap.Logger) *Engine {
	return &Engine{
		threshold:    threshold,
		publisher:    pub,
		changeTopic:  changeTopic,
		verdictTopic: verdictTopic,
		logger:       logger.Named("antifraud"),
	}
}

// Decide maps a transaction value to a verdict. Values strictly above the
// threshold are rejected; the threshold itself is approved.
func (e *Engine) Decide(value decimal.Decimal) model.Verdict {
	if value.GreaterThan(e.threshold) {
		return model.VerdictRejected
	}
	return model.VerdictApproved
}

// HandleChange consumes one creation event, computes the verdict and
// publishes it. Events that are not row creations or carry no value are
// dropped without error; a value that fails numeric coercion is a
// processing failure for that message.
func (e *Engine) HandleChange(ctx context.Context, payload []byte) error {
	var ev model.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(e.changeTopic).Inc()
		e.logger.Debug("ignoring undecodable change event", zap.Error(err))
		return nil
	}

	if ev.Op != model.ChangeOpCreate || !ev.HasValue() {
		metrics.EventsDroppedTotal.WithLabelValues(e.changeTopic).Inc()
		e.logger.Debug("ignoring change event",
			zap.String("op", ev.Op), zap.Bool("hasValue", ev.HasValue()))
		return nil
	}
	if ev.TransactionExternalID == "" {
		metrics.EventsDroppedTotal.WithLabelValues(e.changeTopic).Inc()
		e.logger.Debug("ignoring change event without transaction id")
		return nil
	}

	value, err := ev.DecimalValue()
	if err != nil {
		return fmt.Errorf("invalid value %s for %s: %w", string(ev.Value), ev.TransactionExternalID, err)
	}

	verdict := e.Decide(value)
	e.logger.Info("transaction judged",
		zap.String("transactionExternalId", ev.TransactionExternalID),
		zap.String("value", value.String()),
		zap.String("verdict", string(verdict)))

	result := model.VerdictEvent{
		TransactionExternalID: ev.TransactionExternalID,
		Status:                verdict,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode verdict for %s: %w", ev.TransactionExternalID, err)
	}

	if err := e.publisher.Publish(ctx, e.verdictTopic, ev.TransactionExternalID, out); err != nil {
		return fmt.Errorf("failed to publish verdict for %s: %w", ev.TransactionExternalID, err)
	}

	metrics.VerdictsPublishedTotal.WithLabelValues(string(verdict)).Inc()
	return nil
}
