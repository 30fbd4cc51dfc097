package service

import (
	"context"
	"fmt"
	"time"

	"travel-sales-service/internal/broker"
	"travel-sales-service/internal/models"
	"travel-sales-service/internal/store"
	"travel-sales-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService records payment events and keeps sale and installment status
// consistent with the sum of completed payments.
type LedgerService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store *store.Store, eventPublisher *broker.EventPublisher) *LedgerService {
	return &LedgerService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// RecordPaymentRequest represents a staff-entered payment
type RecordPaymentRequest struct {
	SaleID        int64           `json:"sale_id" binding:"required"`
	InstallmentID *int64          `json:"installment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Method        string          `json:"method" binding:"required"`
	Reference     string          `json:"reference,omitempty"`
	ActorID       int64           `json:"actor_id" binding:"required"`
}

// RecordPayment validates and inserts a payment, then reconciles the linked
// installment and the sale inside the same transaction. Non-gateway methods
// settle immediately; QR payments go through the gateway service instead.
func (ls *LedgerService) RecordPayment(ctx context.Context, req *RecordPaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.RecordPayment")
	defer span.End()

	if !req.Amount.IsPositive() {
		util.PaymentsRejectedTotal.WithLabelValues("non_positive_amount").Inc()
		return nil, fmt.Errorf("amount %s must be positive: %w", req.Amount, ErrInvalidInput)
	}
	if !models.ValidMethod(req.Method) {
		util.PaymentsRejectedTotal.WithLabelValues("unknown_method").Inc()
		return nil, fmt.Errorf("unknown method %q: %w", req.Method, ErrInvalidInput)
	}
	if req.Method == models.MethodQR {
		util.PaymentsRejectedTotal.WithLabelValues("qr_not_direct").Inc()
		return nil, fmt.Errorf("QR payments settle via the gateway callback: %w", ErrInvalidInput)
	}

	now := time.Now()
	payment := &models.Payment{
		SaleID:        req.SaleID,
		InstallmentID: req.InstallmentID,
		Amount:        req.Amount,
		Method:        req.Method,
		Reference:     req.Reference,
		PaidAt:        &now,
		GatewayStatus: models.GatewayStatusCompleted,
	}

	err := ls.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		sale, err := ls.store.GetSaleForUpdateTx(ctx, tx, req.SaleID)
		if err != nil {
			return err
		}
		if sale.Status == models.SaleStatusCancelled {
			return fmt.Errorf("sale %d is cancelled: %w", sale.ID, ErrInvalidInput)
		}

		if err := ls.checkOutstandingTx(ctx, tx, sale, req.InstallmentID, req.Amount); err != nil {
			return err
		}

		if err := ls.store.CreatePaymentTx(ctx, tx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		return ls.reconcileTx(ctx, tx, sale, req.InstallmentID, req.ActorID)
	})
	if err != nil {
		return nil, err
	}

	util.PaymentsRecordedTotal.WithLabelValues(req.Method).Inc()
	ls.logger.Info("Payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("sale_id", payment.SaleID),
		zap.String("amount", payment.Amount.String()))

	event := &models.PaymentRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentRecorded,
			ActorID:   req.ActorID,
			Timestamp: time.Now(),
		},
		PaymentID:     payment.ID,
		SaleID:        payment.SaleID,
		InstallmentID: payment.InstallmentID,
		Amount:        payment.Amount,
		Method:        payment.Method,
	}
	if err := ls.eventPublisher.PublishPaymentRecorded(ctx, event); err != nil {
		ls.logger.Error("Failed to publish PaymentRecorded event", zap.Error(err))
	}

	return payment, nil
}

// checkOutstandingTx rejects amounts larger than the target's outstanding
// balance before anything is written. The target is the installment when
// linked, otherwise the sale as a whole.
func (ls *LedgerService) checkOutstandingTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale, installmentID *int64, amount decimal.Decimal) error {
	if installmentID != nil {
		inst, err := ls.store.GetInstallmentForUpdateTx(ctx, tx, *installmentID)
		if err != nil {
			return err
		}
		plan, err := ls.store.GetPlanByIDTx(ctx, tx, inst.PlanID)
		if err != nil {
			return err
		}
		if plan.SaleID != sale.ID {
			return fmt.Errorf("installment %d does not belong to sale %d: %w",
				inst.ID, sale.ID, ErrInvalidInput)
		}

		paid, err := ls.store.SumCompletedPaymentsForInstallmentTx(ctx, tx, inst.ID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(inst.Total.Sub(paid)) {
			util.PaymentsRejectedTotal.WithLabelValues("exceeds_balance").Inc()
			return fmt.Errorf("installment %d balance is %s: %w",
				inst.ID, inst.Total.Sub(paid), ErrExceedsBalance)
		}
		return nil
	}

	paid, err := ls.store.SumCompletedPaymentsForSaleTx(ctx, tx, sale.ID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(sale.TotalAmount.Sub(paid)) {
		util.PaymentsRejectedTotal.WithLabelValues("exceeds_balance").Inc()
		return fmt.Errorf("sale %d balance is %s: %w",
			sale.ID, sale.TotalAmount.Sub(paid), ErrExceedsBalance)
	}
	return nil
}

// reconcileTx runs the settlement cascade for a payment mutation: the linked
// installment first (if any), then the sale. Both recompute from sums, so
// repeated runs are no-ops.
func (ls *LedgerService) reconcileTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale, installmentID *int64, actorID int64) error {
	if installmentID != nil {
		inst, flipped, err := ls.reconcileInstallmentTx(ctx, tx, *installmentID)
		if err != nil {
			return err
		}
		if flipped {
			ls.publishInstallmentPaid(ctx, sale.ID, inst, actorID)
		}
	}

	_, err := ls.reconcileSaleTx(ctx, tx, sale)
	return err
}

// reconcileSaleTx recomputes and stores the sale's payment status from the
// sum of completed payments. The caller must already hold the sale row lock.
func (ls *LedgerService) reconcileSaleTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale) (string, error) {
	util.ReconciliationsTotal.Inc()

	paid, err := ls.store.SumCompletedPaymentsForSaleTx(ctx, tx, sale.ID)
	if err != nil {
		return "", err
	}

	status := DeriveSaleStatus(paid, sale.TotalAmount)
	if sale.Status == models.SaleStatusCancelled || status == sale.Status {
		return sale.Status, nil
	}

	if err := ls.store.UpdateSaleStatusTx(ctx, tx, sale.ID, status); err != nil {
		return "", fmt.Errorf("failed to update sale status: %w", err)
	}
	sale.Status = status
	return status, nil
}

// reconcileInstallmentTx flips an installment to PAID when its completed
// payments cover its total. PAID is terminal and never reverts.
func (ls *LedgerService) reconcileInstallmentTx(ctx context.Context, tx *sqlx.Tx, installmentID int64) (*models.Installment, bool, error) {
	inst, err := ls.store.GetInstallmentForUpdateTx(ctx, tx, installmentID)
	if err != nil {
		return nil, false, err
	}
	if inst.Status == models.InstallmentStatusPaid {
		return inst, false, nil
	}

	paid, err := ls.store.SumCompletedPaymentsForInstallmentTx(ctx, tx, inst.ID)
	if err != nil {
		return nil, false, err
	}
	if paid.LessThan(inst.Total) {
		return inst, false, nil
	}

	if err := ls.store.SetInstallmentStatusTx(ctx, tx, inst.ID, models.InstallmentStatusPaid); err != nil {
		return nil, false, fmt.Errorf("failed to mark installment paid: %w", err)
	}
	util.InstallmentsPaidTotal.Inc()
	inst.Status = models.InstallmentStatusPaid
	return inst, true, nil
}

// ReconcileSale recomputes a sale's status outside any payment mutation.
// Safe to call repeatedly.
func (ls *LedgerService) ReconcileSale(ctx context.Context, saleID int64) (string, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ReconcileSale")
	defer span.End()

	var status string
	err := ls.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		sale, err := ls.store.GetSaleForUpdateTx(ctx, tx, saleID)
		if err != nil {
			return err
		}
		status, err = ls.reconcileSaleTx(ctx, tx, sale)
		return err
	})
	return status, err
}

// ResolveReviewPayment is the operator action moving a REVIEW gateway payment
// to COMPLETED or CANCELLED. The webhook never resolves REVIEW on its own.
func (ls *LedgerService) ResolveReviewPayment(ctx context.Context, paymentID int64, resolution string, actorID int64) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ResolveReviewPayment")
	defer span.End()

	if resolution != models.GatewayStatusCompleted && resolution != models.GatewayStatusCancelled {
		return nil, fmt.Errorf("resolution %q: %w", resolution, ErrInvalidInput)
	}

	var payment *models.Payment
	err := ls.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		p, err := ls.store.GetPaymentForUpdateTx(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.GatewayStatus != models.GatewayStatusReview {
			return fmt.Errorf("payment %d is %s, not under review: %w",
				p.ID, p.GatewayStatus, ErrInvalidInput)
		}

		p.GatewayStatus = resolution
		if resolution == models.GatewayStatusCompleted {
			now := time.Now()
			p.PaidAt = &now
		}
		if err := ls.store.UpdatePaymentSettlementTx(ctx, tx, p); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if resolution == models.GatewayStatusCompleted {
			sale, err := ls.store.GetSaleForUpdateTx(ctx, tx, p.SaleID)
			if err != nil {
				return err
			}
			if err := ls.reconcileTx(ctx, tx, sale, p.InstallmentID, actorID); err != nil {
				return err
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	ls.logger.Info("Review payment resolved",
		zap.Int64("payment_id", payment.ID),
		zap.String("resolution", resolution),
		zap.Int64("actor_id", actorID))
	return payment, nil
}

// SweepOverdue flips due PENDING installments to OVERDUE. Invoked before
// installment-listing reads rather than on a timer.
func (ls *LedgerService) SweepOverdue(ctx context.Context) (int64, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.SweepOverdue")
	defer span.End()

	n, err := ls.store.MarkOverdueInstallments(ctx)
	if err != nil {
		return 0, fmt.Errorf("overdue sweep failed: %w", err)
	}
	if n > 0 {
		util.OverdueSweepFlipped.Add(float64(n))
		ls.logger.Info("Installments marked overdue", zap.Int64("count", n))
	}
	return n, nil
}

// ListOverdue sweeps first, then returns all overdue installments
func (ls *LedgerService) ListOverdue(ctx context.Context) ([]models.Installment, error) {
	if _, err := ls.SweepOverdue(ctx); err != nil {
		return nil, err
	}
	return ls.store.ListOverdueInstallments(ctx)
}

// ListDueSoon sweeps first, then returns pending installments due within the
// given number of days
func (ls *LedgerService) ListDueSoon(ctx context.Context, days int) ([]models.Installment, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive: %w", ErrInvalidInput)
	}
	if _, err := ls.SweepOverdue(ctx); err != nil {
		return nil, err
	}
	return ls.store.ListInstallmentsDueWithin(ctx, days)
}

func (ls *LedgerService) publishInstallmentPaid(ctx context.Context, saleID int64, inst *models.Installment, actorID int64) {
	event := &models.InstallmentPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeInstallmentPaid,
			ActorID:   actorID,
			Timestamp: time.Now(),
		},
		InstallmentID: inst.ID,
		SaleID:        saleID,
		Seq:           inst.Seq,
	}
	if err := ls.eventPublisher.PublishInstallmentPaid(ctx, event); err != nil {
		ls.logger.Error("Failed to publish InstallmentPaid event", zap.Error(err))
	}
}

// DeriveSaleStatus maps the completed-payment sum to the sale status machine:
// COMPLETED when paid covers the total, PARTIAL when something but not all is
// paid, PENDING otherwise.
func DeriveSaleStatus(paid, total decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.SaleStatusCompleted
	case paid.IsPositive():
		return models.SaleStatusPartial
	default:
		return models.SaleStatusPending
	}
}
