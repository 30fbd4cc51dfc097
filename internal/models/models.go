package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trip represents a scheduled departure with seat inventory
type Trip struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	DepartureDate  time.Time       `db:"departure_date" json:"departure_date"`
	SeatPrice      decimal.Decimal `db:"seat_price" json:"seat_price"`
	TotalSeats     int             `db:"total_seats" json:"total_seats"`
	AvailableSeats int             `db:"available_seats" json:"available_seats"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Sale represents one purchase of trip capacity by a customer
type Sale struct {
	ID               int64           `db:"id" json:"id"`
	TripID           int64           `db:"trip_id" json:"trip_id"`
	CustomerID       int64           `db:"customer_id" json:"customer_id"`
	SellerID         int64           `db:"seller_id" json:"seller_id"`
	CustomerName     string          `db:"customer_name" json:"customer_name"`
	CustomerDocument string          `db:"customer_document" json:"customer_document"`
	CustomerEmail    string          `db:"customer_email" json:"customer_email"`
	Seats            int             `db:"seats" json:"seats"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaymentType      string          `db:"payment_type" json:"payment_type"`
	Status           string          `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// InstallmentPlan holds the credit terms of an installment sale (1:1 with Sale)
type InstallmentPlan struct {
	ID           int64           `db:"id" json:"id"`
	SaleID       int64           `db:"sale_id" json:"sale_id"`
	Installments int             `db:"installments" json:"installments"`
	MonthlyRate  decimal.Decimal `db:"monthly_rate" json:"monthly_rate"`
	DueDay       int             `db:"due_day" json:"due_day"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Installment is one scheduled payment obligation within a plan
type Installment struct {
	ID       int64           `db:"id" json:"id"`
	PlanID   int64           `db:"plan_id" json:"plan_id"`
	Seq      int             `db:"seq" json:"seq"`
	DueDate  time.Time       `db:"due_date" json:"due_date"`
	Capital  decimal.Decimal `db:"capital" json:"capital"`
	Interest decimal.Decimal `db:"interest" json:"interest"`
	Total    decimal.Decimal `db:"total" json:"total"`
	Status   string          `db:"status" json:"status"`
}

// Payment represents one money-movement record against a sale or installment.
// MerchantTxID and the QR fields are only populated for gateway-backed
// payments; PaidAt stays null until the payment settles.
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	SaleID        int64           `db:"sale_id" json:"sale_id"`
	InstallmentID *int64          `db:"installment_id" json:"installment_id,omitempty"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        string          `db:"method" json:"method"`
	Reference     string          `db:"reference" json:"reference,omitempty"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	MerchantTxID  string          `db:"merchant_tx_id" json:"merchant_tx_id,omitempty"`
	ProviderTxID  string          `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	QRBase64      string          `db:"qr_base64" json:"qr_base64,omitempty"`
	CheckoutURL   string          `db:"checkout_url" json:"checkout_url,omitempty"`
	DeepLink      string          `db:"deep_link" json:"deep_link,omitempty"`
	QRContentURL  string          `db:"qr_content_url" json:"qr_content_url,omitempty"`
	UniversalURL  string          `db:"universal_url" json:"universal_url,omitempty"`
	QRExpiresAt   *time.Time      `db:"qr_expires_at" json:"qr_expires_at,omitempty"`
	GatewayStatus string          `db:"gateway_status" json:"gateway_status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// AuditEntry is one persisted audit-trail row, written by the audit worker
type AuditEntry struct {
	ID        int64     `db:"id" json:"id"`
	ActorID   int64     `db:"actor_id" json:"actor_id"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  int64     `db:"entity_id" json:"entity_id"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Sale statuses
const (
	SaleStatusPending   = "PENDING"
	SaleStatusPartial   = "PARTIAL"
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
)

// Payment types
const (
	PaymentTypeOneTime     = "ONE_TIME"
	PaymentTypeInstallment = "INSTALLMENT"
)

// Installment statuses
const (
	InstallmentStatusPending = "PENDING"
	InstallmentStatusPaid    = "PAID"
	InstallmentStatusOverdue = "OVERDUE"
)

// Payment methods
const (
	MethodCash         = "CASH"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodCard         = "CARD"
	MethodQR           = "QR"

	// Reported by the gateway in callbacks, never staff-entered.
	MethodTigoMoney = "TIGO_MONEY"
)

// Gateway payment statuses
const (
	GatewayStatusPending   = "PENDING"
	GatewayStatusCompleted = "COMPLETED"
	GatewayStatusCancelled = "CANCELLED"
	GatewayStatusReview    = "REVIEW"
)

// Trip statuses
const (
	TripStatusOpen = "OPEN"
	TripStatusFull = "FULL"
)

// ValidMethod reports whether m is a known payment method
func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCard, MethodQR:
		return true
	}
	return false
}
