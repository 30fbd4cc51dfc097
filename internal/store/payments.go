package store

import (
	"context"
	"database/sql"
	"fmt"

	"travel-sales-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreatePaymentTx inserts a payment record inside tx
func (s *Store) CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, p *models.Payment) error {
	query := `
		INSERT INTO payments (sale_id, installment_id, amount, method, reference, paid_at,
			merchant_tx_id, gateway_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, p, query,
		p.SaleID, p.InstallmentID, p.Amount, p.Method, p.Reference, p.PaidAt,
		p.MerchantTxID, p.GatewayStatus)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	err := s.db.GetContext(ctx, &p, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentForUpdateTx locks and retrieves a payment row inside tx
func (s *Store) GetPaymentForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Payment, error) {
	var p models.Payment
	err := tx.GetContext(ctx, &p, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentByMerchantTxIDForUpdateTx locks and retrieves the payment matching
// a gateway merchant transaction id. The webhook handler depends on the lock
// to serialize duplicate deliveries of the same callback.
func (s *Store) GetPaymentByMerchantTxIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, merchantTxID string) (*models.Payment, error) {
	var p models.Payment
	err := tx.GetContext(ctx, &p,
		"SELECT * FROM payments WHERE merchant_tx_id = $1 FOR UPDATE", merchantTxID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("merchant tx %s: %w", merchantTxID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePaymentQRDataTx persists the gateway's QR response onto a pending payment
func (s *Store) UpdatePaymentQRDataTx(ctx context.Context, tx *sqlx.Tx, p *models.Payment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET provider_tx_id = $1, qr_base64 = $2, checkout_url = $3, deep_link = $4,
			qr_content_url = $5, universal_url = $6, qr_expires_at = $7, updated_at = NOW()
		WHERE id = $8`,
		p.ProviderTxID, p.QRBase64, p.CheckoutURL, p.DeepLink,
		p.QRContentURL, p.UniversalURL, p.QRExpiresAt, p.ID)
	return err
}

// UpdatePaymentSettlementTx persists a gateway status transition inside tx
func (s *Store) UpdatePaymentSettlementTx(ctx context.Context, tx *sqlx.Tx, p *models.Payment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET gateway_status = $1, method = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $4`,
		p.GatewayStatus, p.Method, p.PaidAt, p.ID)
	return err
}

// ListPaymentsBySale retrieves all payments of a sale, newest first
func (s *Store) ListPaymentsBySale(ctx context.Context, saleID int64) ([]models.Payment, error) {
	var rows []models.Payment
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM payments WHERE sale_id = $1 ORDER BY created_at DESC", saleID)
	return rows, err
}

// CountPaymentsBySaleTx counts a sale's payment records inside tx. Cancellation
// is only allowed while this is zero.
func (s *Store) CountPaymentsBySaleTx(ctx context.Context, tx *sqlx.Tx, saleID int64) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM payments WHERE sale_id = $1", saleID)
	return n, err
}

// SumCompletedPaymentsForSaleTx sums COMPLETED payment amounts for a sale inside tx
func (s *Store) SumCompletedPaymentsForSaleTx(ctx context.Context, tx *sqlx.Tx, saleID int64) (decimal.Decimal, error) {
	return s.sumCompletedForSale(ctx, tx, saleID)
}

// SumCompletedPaymentsForSale sums COMPLETED payment amounts for a sale
func (s *Store) SumCompletedPaymentsForSale(ctx context.Context, saleID int64) (decimal.Decimal, error) {
	return s.sumCompletedForSale(ctx, s.db, saleID)
}

func (s *Store) sumCompletedForSale(ctx context.Context, q sqlx.QueryerContext, saleID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := sqlx.GetContext(ctx, q, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE sale_id = $1 AND gateway_status = $2`,
		saleID, models.GatewayStatusCompleted)
	return sum, err
}

// SumCompletedPaymentsForInstallmentTx sums COMPLETED payment amounts linked
// to one installment inside tx
func (s *Store) SumCompletedPaymentsForInstallmentTx(ctx context.Context, tx *sqlx.Tx, installmentID int64) (decimal.Decimal, error) {
	return s.sumCompletedForInstallment(ctx, tx, installmentID)
}

// SumCompletedPaymentsForInstallment sums COMPLETED payment amounts linked to
// one installment
func (s *Store) SumCompletedPaymentsForInstallment(ctx context.Context, installmentID int64) (decimal.Decimal, error) {
	return s.sumCompletedForInstallment(ctx, s.db, installmentID)
}

func (s *Store) sumCompletedForInstallment(ctx context.Context, q sqlx.QueryerContext, installmentID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := sqlx.GetContext(ctx, q, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE installment_id = $1 AND gateway_status = $2`,
		installmentID, models.GatewayStatusCompleted)
	return sum, err
}

// InsertAuditEntry persists one audit-trail row
func (s *Store) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, entity, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ActorID, e.Action, e.Entity, e.EntityID, e.Detail)
	return err
}
