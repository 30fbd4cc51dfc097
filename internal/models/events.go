package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCreated      = "SALE_CREATED"
	EventTypeSaleCancelled    = "SALE_CANCELLED"
	EventTypePaymentRecorded  = "PAYMENT_RECORDED"
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypeInstallmentPaid  = "INSTALLMENT_PAID"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCreatedEvent published when a sale is created and seats reserved
type SaleCreatedEvent struct {
	BaseEvent
	SaleID      int64           `json:"sale_id"`
	TripID      int64           `json:"trip_id"`
	Seats       int             `json:"seats"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaymentType string          `json:"payment_type"`
}

// SaleCancelledEvent published when a sale is cancelled and seats released
type SaleCancelledEvent struct {
	BaseEvent
	SaleID int64  `json:"sale_id"`
	TripID int64  `json:"trip_id"`
	Seats  int    `json:"seats"`
	Reason string `json:"reason"`
}

// PaymentRecordedEvent published when a staff-entered payment is inserted
type PaymentRecordedEvent struct {
	BaseEvent
	PaymentID     int64           `json:"payment_id"`
	SaleID        int64           `json:"sale_id"`
	InstallmentID *int64          `json:"installment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
}

// PaymentCompletedEvent published when a gateway payment reaches COMPLETED
type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID    int64           `json:"payment_id"`
	SaleID       int64           `json:"sale_id"`
	Amount       decimal.Decimal `json:"amount"`
	MerchantTxID string          `json:"merchant_tx_id"`
	SaleStatus   string          `json:"sale_status"`
}

// InstallmentPaidEvent published when an installment flips to PAID
type InstallmentPaidEvent struct {
	BaseEvent
	InstallmentID int64 `json:"installment_id"`
	SaleID        int64 `json:"sale_id"`
	Seq           int   `json:"seq"`
}
