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

// SaleService owns the sale lifecycle: creation with seat reservation and
// optional installment plan, cancellation, and detail reads.
type SaleService struct {
	store          *store.Store
	ledger         *LedgerService
	gateway        *GatewayService
	eventPublisher *broker.EventPublisher
	defaultDueDay  int
	logger         *zap.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(store *store.Store, ledger *LedgerService, gateway *GatewayService, eventPublisher *broker.EventPublisher, defaultDueDay int) *SaleService {
	return &SaleService{
		store:          store,
		ledger:         ledger,
		gateway:        gateway,
		eventPublisher: eventPublisher,
		defaultDueDay:  defaultDueDay,
		logger:         util.GetLogger(),
	}
}

// InitialPaymentRequest is an optional down payment taken at sale creation
type InitialPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Method    string          `json:"method" binding:"required"`
	Reference string          `json:"reference,omitempty"`
}

// CreateSaleRequest represents a new sale
type CreateSaleRequest struct {
	TripID           int64                  `json:"trip_id" binding:"required"`
	CustomerID       int64                  `json:"customer_id" binding:"required"`
	CustomerName     string                 `json:"customer_name" binding:"required"`
	CustomerDocument string                 `json:"customer_document,omitempty"`
	CustomerEmail    string                 `json:"customer_email,omitempty"`
	Seats            int                    `json:"seats" binding:"required"`
	PaymentType      string                 `json:"payment_type" binding:"required"`
	Installments     int                    `json:"installments,omitempty"`
	MonthlyRate      decimal.Decimal        `json:"monthly_rate,omitempty"`
	DueDay           int                    `json:"due_day,omitempty"`
	InitialPayment   *InitialPaymentRequest `json:"initial_payment,omitempty"`
	ActorID          int64                  `json:"actor_id" binding:"required"`
}

// SaleDetail is the full read model of a sale
type SaleDetail struct {
	Sale         *models.Sale            `json:"sale"`
	Plan         *models.InstallmentPlan `json:"plan,omitempty"`
	Installments []models.Installment    `json:"installments,omitempty"`
	Payments     []models.Payment        `json:"payments"`
	Paid         decimal.Decimal         `json:"paid"`
	Balance      decimal.Decimal         `json:"balance"`
	Summary      *PlanSummary            `json:"plan_summary,omitempty"`
}

// PlanSummary aggregates an installment plan for display
type PlanSummary struct {
	TotalCapital      decimal.Decimal `json:"total_capital"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	TotalWithInterest decimal.Decimal `json:"total_with_interest"`
	PaidCount         int             `json:"paid_count"`
	OverdueCount      int             `json:"overdue_count"`
	PendingCount      int             `json:"pending_count"`
}

// CreateSale creates a sale in a single transaction: lock the trip, reserve
// seats, persist the sale, generate the installment schedule when the sale
// is on credit, and optionally take an initial payment. Any failure,
// including a gateway outage during an initial QR payment, rolls everything
// back and leaves the seats untouched.
func (ss *SaleService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*SaleDetail, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	if err := ss.validateCreate(req); err != nil {
		util.SalesFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	sale := &models.Sale{
		TripID:           req.TripID,
		CustomerID:       req.CustomerID,
		SellerID:         req.ActorID,
		CustomerName:     req.CustomerName,
		CustomerDocument: req.CustomerDocument,
		CustomerEmail:    req.CustomerEmail,
		Seats:            req.Seats,
		PaymentType:      req.PaymentType,
		Status:           models.SaleStatusPending,
	}

	var installments []models.Installment
	err := ss.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		trip, err := ss.store.GetTripForUpdateTx(ctx, tx, req.TripID)
		if err != nil {
			return err
		}

		sale.TotalAmount = trip.SeatPrice.Mul(decimal.NewFromInt(int64(req.Seats))).Round(2)

		if err := ss.store.CreateSaleTx(ctx, tx, sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		if err := ss.store.ReserveSeatsTx(ctx, tx, req.TripID, req.Seats); err != nil {
			util.SeatReservationsFailed.WithLabelValues("insufficient").Inc()
			return err
		}

		if req.PaymentType == models.PaymentTypeInstallment {
			installments, err = ss.createPlanTx(ctx, tx, sale, req)
			if err != nil {
				return err
			}
		}

		if req.InitialPayment != nil {
			if err := ss.takeInitialPaymentTx(ctx, tx, sale, req, installments); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	util.SalesCreatedTotal.Inc()
	ss.logger.Info("Sale created",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("trip_id", sale.TripID),
		zap.Int("seats", sale.Seats),
		zap.String("total", sale.TotalAmount.String()))

	event := &models.SaleCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleCreated,
			ActorID:   req.ActorID,
			Timestamp: time.Now(),
		},
		SaleID:      sale.ID,
		TripID:      sale.TripID,
		Seats:       sale.Seats,
		TotalAmount: sale.TotalAmount,
		PaymentType: sale.PaymentType,
	}
	if err := ss.eventPublisher.PublishSaleCreated(ctx, event); err != nil {
		ss.logger.Error("Failed to publish SaleCreated event", zap.Error(err))
	}

	return ss.GetSale(ctx, sale.ID)
}

func (ss *SaleService) validateCreate(req *CreateSaleRequest) error {
	if req.Seats <= 0 {
		return fmt.Errorf("seats must be positive: %w", ErrInvalidInput)
	}
	switch req.PaymentType {
	case models.PaymentTypeOneTime:
	case models.PaymentTypeInstallment:
		if req.Installments < 2 {
			return fmt.Errorf("installment sales need at least 2 installments: %w", ErrInvalidInput)
		}
		if req.MonthlyRate.IsNegative() {
			return fmt.Errorf("monthly rate must not be negative: %w", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown payment type %q: %w", req.PaymentType, ErrInvalidInput)
	}
	if req.InitialPayment != nil {
		if !req.InitialPayment.Amount.IsPositive() {
			return fmt.Errorf("initial payment must be positive: %w", ErrInvalidInput)
		}
		if !models.ValidMethod(req.InitialPayment.Method) {
			return fmt.Errorf("unknown method %q: %w", req.InitialPayment.Method, ErrInvalidInput)
		}
	}
	return nil
}

func (ss *SaleService) createPlanTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale, req *CreateSaleRequest) ([]models.Installment, error) {
	dueDay := req.DueDay
	if dueDay == 0 {
		dueDay = ss.defaultDueDay
	}

	rows, err := GenerateSchedule(sale.TotalAmount, req.Installments, req.MonthlyRate, time.Now(), dueDay)
	if err != nil {
		return nil, err
	}

	plan := &models.InstallmentPlan{
		SaleID:       sale.ID,
		Installments: req.Installments,
		MonthlyRate:  req.MonthlyRate,
		DueDay:       dueDay,
	}
	if err := ss.store.CreatePlanTx(ctx, tx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	for i := range rows {
		rows[i].PlanID = plan.ID
	}
	if err := ss.store.CreateInstallmentsTx(ctx, tx, rows); err != nil {
		return nil, fmt.Errorf("failed to create installments: %w", err)
	}
	return rows, nil
}

// takeInitialPaymentTx records the down payment taken at the counter. Cash-
// like methods settle immediately and reconcile in the same transaction; QR
// goes through the gateway and stays PENDING until the webhook confirms it.
func (ss *SaleService) takeInitialPaymentTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale, req *CreateSaleRequest, installments []models.Installment) error {
	ip := req.InitialPayment
	if ip.Amount.GreaterThan(sale.TotalAmount) {
		return fmt.Errorf("initial payment %s exceeds sale total %s: %w",
			ip.Amount, sale.TotalAmount, ErrExceedsBalance)
	}

	if ip.Method == models.MethodQR {
		_, err := ss.gateway.issueQRTx(ctx, tx, sale, nil, ip.Amount)
		return err
	}

	now := time.Now()
	payment := &models.Payment{
		SaleID:        sale.ID,
		Amount:        ip.Amount,
		Method:        ip.Method,
		Reference:     ip.Reference,
		PaidAt:        &now,
		GatewayStatus: models.GatewayStatusCompleted,
	}
	if err := ss.store.CreatePaymentTx(ctx, tx, payment); err != nil {
		return fmt.Errorf("failed to create initial payment: %w", err)
	}
	util.PaymentsRecordedTotal.WithLabelValues(ip.Method).Inc()

	return ss.ledger.reconcileTx(ctx, tx, sale, nil, req.ActorID)
}

// CancelSale cancels a sale, releasing its seats and deleting its plan. A
// sale with any recorded payment cannot be cancelled; the money has to be
// dealt with first.
func (ss *SaleService) CancelSale(ctx context.Context, saleID int64, reason string, actorID int64) error {
	ctx, span := util.StartSpan(ctx, "SaleService.CancelSale")
	defer span.End()

	var sale *models.Sale
	err := ss.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		s, err := ss.store.GetSaleForUpdateTx(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if s.Status == models.SaleStatusCancelled {
			return fmt.Errorf("sale %d already cancelled: %w", s.ID, ErrInvalidInput)
		}

		count, err := ss.store.CountPaymentsBySaleTx(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("sale %d has %d payments: %w", s.ID, count, ErrSaleHasPayments)
		}

		if err := ss.store.ReleaseSeatsTx(ctx, tx, s.TripID, s.Seats); err != nil {
			return err
		}
		if err := ss.store.DeletePlanTx(ctx, tx, s.ID); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		if err := ss.store.UpdateSaleStatusTx(ctx, tx, s.ID, models.SaleStatusCancelled); err != nil {
			return fmt.Errorf("failed to cancel sale: %w", err)
		}

		sale = s
		return nil
	})
	if err != nil {
		return err
	}

	util.SalesCancelledTotal.Inc()
	ss.logger.Info("Sale cancelled",
		zap.Int64("sale_id", sale.ID),
		zap.String("reason", reason))

	event := &models.SaleCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleCancelled,
			ActorID:   actorID,
			Timestamp: time.Now(),
		},
		SaleID: sale.ID,
		TripID: sale.TripID,
		Seats:  sale.Seats,
		Reason: reason,
	}
	if err := ss.eventPublisher.PublishSaleCancelled(ctx, event); err != nil {
		ss.logger.Error("Failed to publish SaleCancelled event", zap.Error(err))
	}

	return nil
}

// GetSale returns the full read model: sale, plan, installments, payments
// and derived paid/balance figures.
func (ss *SaleService) GetSale(ctx context.Context, saleID int64) (*SaleDetail, error) {
	sale, err := ss.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, err
	}

	payments, err := ss.store.ListPaymentsBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	paid, err := ss.store.SumCompletedPaymentsForSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	detail := &SaleDetail{
		Sale:     sale,
		Payments: payments,
		Paid:     paid,
		Balance:  sale.TotalAmount.Sub(paid),
	}

	plan, err := ss.store.GetPlanBySaleID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		installments, err := ss.store.GetInstallmentsByPlanID(ctx, plan.ID)
		if err != nil {
			return nil, err
		}
		detail.Plan = plan
		detail.Installments = installments
		detail.Summary = SummarizePlan(installments)
	}

	return detail, nil
}

// SummarizePlan folds installment rows into the display aggregate
func SummarizePlan(installments []models.Installment) *PlanSummary {
	s := &PlanSummary{
		TotalCapital:      decimal.Zero,
		TotalInterest:     decimal.Zero,
		TotalWithInterest: decimal.Zero,
	}
	for _, inst := range installments {
		s.TotalCapital = s.TotalCapital.Add(inst.Capital)
		s.TotalInterest = s.TotalInterest.Add(inst.Interest)
		s.TotalWithInterest = s.TotalWithInterest.Add(inst.Total)
		switch inst.Status {
		case models.InstallmentStatusPaid:
			s.PaidCount++
		case models.InstallmentStatusOverdue:
			s.OverdueCount++
		default:
			s.PendingCount++
		}
	}
	return s
}
