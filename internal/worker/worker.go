// The audit worker turns the domain event stream into the persistent audit
// trail. Every mutation publishes an event with the acting staff member, the
// worker writes one audit row per event.
package worker

import (
	"context"
	"encoding/json"

	"travel-sales-service/internal/broker"
	"travel-sales-service/internal/models"
	"travel-sales-service/internal/store"
	"travel-sales-service/internal/util"

	"go.uber.org/zap"
)

// AuditWorker consumes domain events and records them in the audit log
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store *store.Store) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnAny(w.recordEvent)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

// recordEvent writes one audit row per consumed event. The raw payload goes
// into the detail column so the trail survives event schema changes.
func (w *AuditWorker) recordEvent(ctx context.Context, base *models.BaseEvent, raw []byte) error {
	entity, entityID := classify(base.EventType, raw)

	entry := &models.AuditEntry{
		ActorID:  base.ActorID,
		Action:   base.EventType,
		Entity:   entity,
		EntityID: entityID,
		Detail:   string(raw),
	}

	if err := w.store.InsertAuditEntry(ctx, entry); err != nil {
		w.logger.Error("Failed to insert audit entry",
			zap.String("event_id", base.EventID),
			zap.Error(err))
		return err
	}

	return nil
}

// classify extracts the primary entity reference of an event
func classify(eventType string, raw []byte) (string, int64) {
	switch eventType {
	case models.EventTypeSaleCreated, models.EventTypeSaleCancelled:
		var e struct {
			SaleID int64 `json:"sale_id"`
		}
		_ = json.Unmarshal(raw, &e)
		return "sale", e.SaleID

	case models.EventTypePaymentRecorded, models.EventTypePaymentCompleted:
		var e struct {
			PaymentID int64 `json:"payment_id"`
		}
		_ = json.Unmarshal(raw, &e)
		return "payment", e.PaymentID

	case models.EventTypeInstallmentPaid:
		var e struct {
			InstallmentID int64 `json:"installment_id"`
		}
		_ = json.Unmarshal(raw, &e)
		return "installment", e.InstallmentID

	default:
		return "unknown", 0
	}
}
