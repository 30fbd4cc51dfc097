package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"travel-sales-service/internal/broker"
	"travel-sales-service/internal/gateway"
	"travel-sales-service/internal/models"
	"travel-sales-service/internal/store"
	"travel-sales-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GatewayService drives the QR payment lifecycle: QR issuance, the provider
// webhook, and the status projection the frontend polls.
type GatewayService struct {
	store          *store.Store
	client         *gateway.Client
	ledger         *LedgerService
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewGatewayService creates a new gateway service
func NewGatewayService(store *store.Store, client *gateway.Client, ledger *LedgerService, eventPublisher *broker.EventPublisher) *GatewayService {
	return &GatewayService{
		store:          store,
		client:         client,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateQRPaymentRequest asks the provider for a QR against a sale or one of
// its installments
type CreateQRPaymentRequest struct {
	SaleID        int64  `json:"sale_id" binding:"required"`
	InstallmentID *int64 `json:"installment_id,omitempty"`
	ActorID       int64  `json:"actor_id" binding:"required"`
}

// CreateQRPayment creates a PENDING payment and requests a QR from the
// provider inside one transaction. A gateway failure rolls the pending
// payment back, so no orphan rows survive a provider outage.
func (gs *GatewayService) CreateQRPayment(ctx context.Context, req *CreateQRPaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "GatewayService.CreateQRPayment")
	defer span.End()

	var payment *models.Payment
	err := gs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		sale, err := gs.store.GetSaleForUpdateTx(ctx, tx, req.SaleID)
		if err != nil {
			return err
		}
		if sale.Status == models.SaleStatusCancelled {
			return fmt.Errorf("sale %d is cancelled: %w", sale.ID, ErrInvalidInput)
		}

		amount, err := gs.outstandingTx(ctx, tx, sale, req.InstallmentID)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return fmt.Errorf("nothing outstanding on sale %d: %w", sale.ID, ErrInvalidInput)
		}

		payment, err = gs.issueQRTx(ctx, tx, sale, req.InstallmentID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	gs.logger.Info("QR payment created",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("sale_id", payment.SaleID),
		zap.String("merchant_tx_id", payment.MerchantTxID))
	return payment, nil
}

// issueQRTx inserts a PENDING QR payment and requests the QR from the
// provider within tx. Also used during sale creation so a gateway failure
// unwinds the whole sale.
func (gs *GatewayService) issueQRTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale, installmentID *int64, amount decimal.Decimal) (*models.Payment, error) {
	trip, err := gs.store.GetTrip(ctx, sale.TripID)
	if err != nil {
		return nil, err
	}

	p := &models.Payment{
		SaleID:        sale.ID,
		InstallmentID: installmentID,
		Amount:        amount,
		Method:        models.MethodQR,
		MerchantTxID:  newMerchantTxID(sale.ID),
		GatewayStatus: models.GatewayStatusPending,
	}
	if err := gs.store.CreatePaymentTx(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	qrReq := gs.client.BuildQRRequest(
		p.MerchantTxID,
		sale.CustomerName,
		sale.CustomerDocument,
		sale.CustomerEmail,
		strconv.FormatInt(sale.CustomerID, 10),
		fmt.Sprintf("Viaje: %s", trip.Name),
		amount,
	)

	result, err := gs.client.GenerateQR(ctx, qrReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	p.ProviderTxID = result.TransactionID
	p.QRBase64 = result.QRBase64
	p.CheckoutURL = result.CheckoutURL
	p.DeepLink = result.DeepLink
	p.QRContentURL = result.QRContentURL
	p.UniversalURL = result.UniversalURL
	p.QRExpiresAt = parseExpiration(result.ExpirationDate)

	if err := gs.store.UpdatePaymentQRDataTx(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("failed to store QR data: %w", err)
	}
	return p, nil
}

// outstandingTx returns the unpaid remainder of the installment when linked,
// otherwise of the whole sale.
func (gs *GatewayService) outstandingTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale, installmentID *int64) (amount decimal.Decimal, err error) {
	if installmentID != nil {
		inst, err := gs.store.GetInstallmentForUpdateTx(ctx, tx, *installmentID)
		if err != nil {
			return amount, err
		}
		plan, err := gs.store.GetPlanByIDTx(ctx, tx, inst.PlanID)
		if err != nil {
			return amount, err
		}
		if plan.SaleID != sale.ID {
			return amount, fmt.Errorf("installment %d does not belong to sale %d: %w",
				inst.ID, sale.ID, ErrInvalidInput)
		}
		paid, err := gs.store.SumCompletedPaymentsForInstallmentTx(ctx, tx, inst.ID)
		if err != nil {
			return amount, err
		}
		return inst.Total.Sub(paid), nil
	}

	paid, err := gs.store.SumCompletedPaymentsForSaleTx(ctx, tx, sale.ID)
	if err != nil {
		return amount, err
	}
	return sale.TotalAmount.Sub(paid), nil
}

// GatewayCallback is the provider's webhook body
type GatewayCallback struct {
	PedidoID   string `json:"PedidoID" binding:"required"`
	Fecha      string `json:"Fecha" binding:"required"`
	Hora       string `json:"Hora" binding:"required"`
	MetodoPago string `json:"MetodoPago" binding:"required"`
	Estado     int    `json:"Estado" binding:"required"`
}

// HandleGatewayCallback applies a webhook delivery to the referenced payment.
// The merchant tx id row lock serializes duplicate deliveries; re-delivering
// a status the payment already holds changes nothing. Only the first
// transition into COMPLETED stamps paid_at and runs the settlement cascade.
func (gs *GatewayService) HandleGatewayCallback(ctx context.Context, cb *GatewayCallback, actorID int64) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "GatewayService.HandleGatewayCallback")
	defer span.End()

	newStatus := MapEstado(cb.Estado)

	var payment *models.Payment
	var completed bool
	err := gs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		p, err := gs.store.GetPaymentByMerchantTxIDForUpdateTx(ctx, tx, cb.PedidoID)
		if err != nil {
			return err
		}

		wasCompleted := p.GatewayStatus == models.GatewayStatusCompleted
		p.GatewayStatus = newStatus
		p.Method = MapMetodoPago(cb.MetodoPago)

		if newStatus == models.GatewayStatusCompleted && !wasCompleted {
			now := time.Now()
			p.PaidAt = &now
			completed = true
		}

		if err := gs.store.UpdatePaymentSettlementTx(ctx, tx, p); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if completed {
			sale, err := gs.store.GetSaleForUpdateTx(ctx, tx, p.SaleID)
			if err != nil {
				return err
			}
			if err := gs.ledger.reconcileTx(ctx, tx, sale, p.InstallmentID, actorID); err != nil {
				return err
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	gs.logger.Info("Gateway callback applied",
		zap.String("merchant_tx_id", cb.PedidoID),
		zap.String("status", newStatus),
		zap.Int64("payment_id", payment.ID))

	if completed {
		sale, err := gs.store.GetSaleByID(ctx, payment.SaleID)
		saleStatus := ""
		if err == nil {
			saleStatus = sale.Status
		}
		event := &models.PaymentCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentCompleted,
				ActorID:   actorID,
				Timestamp: time.Now(),
			},
			PaymentID:    payment.ID,
			SaleID:       payment.SaleID,
			Amount:       payment.Amount,
			MerchantTxID: payment.MerchantTxID,
			SaleStatus:   saleStatus,
		}
		if err := gs.eventPublisher.PublishPaymentCompleted(ctx, event); err != nil {
			gs.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
		}
	}

	return payment, nil
}

// PaymentStatusProjection is the polling payload consumed by the frontend
type PaymentStatusProjection struct {
	ID               int64   `json:"id"`
	PaymentStatus    string  `json:"payment_status"`
	FechaPago        *string `json:"fecha_pago"`
	QRExpirationDate *string `json:"qr_expiration_date"`
	IsPaid           bool    `json:"is_paid"`
	IsPending        bool    `json:"is_pending"`
	IsExpired        bool    `json:"is_expired"`
	IsCancelled      bool    `json:"is_cancelled"`
	IsReview         bool    `json:"is_review"`
	VentaEstado      string  `json:"venta_estado"`
}

// PaymentStatus returns the polling projection for a payment. Read-only:
// expiry is derived from the stored QR expiry, never written back.
func (gs *GatewayService) PaymentStatus(ctx context.Context, paymentID int64) (*PaymentStatusProjection, error) {
	p, err := gs.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	sale, err := gs.store.GetSaleByID(ctx, p.SaleID)
	if err != nil {
		return nil, err
	}
	return ProjectPaymentStatus(p, sale.Status, time.Now()), nil
}

// ProjectPaymentStatus builds the polling projection from a payment snapshot
func ProjectPaymentStatus(p *models.Payment, saleStatus string, now time.Time) *PaymentStatusProjection {
	proj := &PaymentStatusProjection{
		ID:            p.ID,
		PaymentStatus: p.GatewayStatus,
		IsPaid:        p.GatewayStatus == models.GatewayStatusCompleted,
		IsPending:     p.GatewayStatus == models.GatewayStatusPending,
		IsCancelled:   p.GatewayStatus == models.GatewayStatusCancelled,
		IsReview:      p.GatewayStatus == models.GatewayStatusReview,
		VentaEstado:   saleStatus,
	}
	if p.PaidAt != nil {
		s := p.PaidAt.Format("2006-01-02 15:04:05")
		proj.FechaPago = &s
	}
	if p.QRExpiresAt != nil {
		s := p.QRExpiresAt.Format("2006-01-02 15:04:05")
		proj.QRExpirationDate = &s
		if proj.IsPending && now.After(*p.QRExpiresAt) {
			proj.IsExpired = true
		}
	}
	return proj
}

// MapEstado maps the provider's numeric payment state to the internal
// gateway status. Unknown values stay PENDING rather than failing the
// delivery.
func MapEstado(estado int) string {
	switch estado {
	case 1:
		return models.GatewayStatusPending
	case 2:
		return models.GatewayStatusCompleted
	case 4:
		return models.GatewayStatusCancelled
	case 5:
		return models.GatewayStatusReview
	default:
		return models.GatewayStatusPending
	}
}

// MapMetodoPago maps the provider's payment method label. Anything
// unrecognized is treated as QR.
func MapMetodoPago(metodo string) string {
	switch strings.ToUpper(strings.TrimSpace(metodo)) {
	case "TIGO MONEY", "TIGO_MONEY":
		return models.MethodTigoMoney
	case "QR":
		return models.MethodQR
	default:
		return models.MethodQR
	}
}

// newMerchantTxID builds the provider-facing payment number. The random
// suffix keeps retried QR issuance for the same sale from colliding.
func newMerchantTxID(saleID int64) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("PAGO-%d-%s", saleID, suffix)
}

// parseExpiration parses the provider's expiration timestamp. The provider
// has been seen sending both date-time and date-only values.
func parseExpiration(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
