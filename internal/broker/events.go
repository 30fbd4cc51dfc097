package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"travel-sales-service/internal/models"
	"travel-sales-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSaleCreated publishes SaleCreated event
func (ep *EventPublisher) PublishSaleCreated(ctx context.Context, event *models.SaleCreatedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSaleCancelled publishes SaleCancelled event
func (ep *EventPublisher) PublishSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentRecorded publishes PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentCompleted publishes PaymentCompleted event
func (ep *EventPublisher) PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishInstallmentPaid publishes InstallmentPaid event
func (ep *EventPublisher) PublishInstallmentPaid(ctx context.Context, event *models.InstallmentPaidEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events. The audit worker registers a catch-all
// to persist every event; typed handlers exist for consumers that only care
// about one event.
type EventHandler struct {
	onAny             func(context.Context, *models.BaseEvent, []byte) error
	onInstallmentPaid func(context.Context, *models.InstallmentPaidEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnAny registers a handler invoked for every event with the envelope and
// the raw payload.
func (eh *EventHandler) OnAny(handler func(context.Context, *models.BaseEvent, []byte) error) {
	eh.onAny = handler
}

// OnInstallmentPaid registers a handler for InstallmentPaid events
func (eh *EventHandler) OnInstallmentPaid(handler func(context.Context, *models.InstallmentPaidEvent) error) {
	eh.onInstallmentPaid = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	if eh.onAny != nil {
		if err := eh.onAny(ctx, &baseEvent, msg.Value); err != nil {
			return err
		}
	}

	if baseEvent.EventType == models.EventTypeInstallmentPaid && eh.onInstallmentPaid != nil {
		var event models.InstallmentPaidEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal InstallmentPaid event: %w", err)
		}
		return eh.onInstallmentPaid(ctx, &event)
	}

	return nil
}
