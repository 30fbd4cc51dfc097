package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"travel-sales-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateSaleTx inserts a new sale inside tx
func (s *Store) CreateSaleTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale) error {
	query := `
		INSERT INTO sales (trip_id, customer_id, seller_id, customer_name, customer_document,
			customer_email, seats, total_amount, payment_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, sale, query,
		sale.TripID, sale.CustomerID, sale.SellerID, sale.CustomerName, sale.CustomerDocument,
		sale.CustomerEmail, sale.Seats, sale.TotalAmount, sale.PaymentType, sale.Status)
}

// GetSaleByID retrieves a sale by ID
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleForUpdateTx locks and retrieves a sale row inside tx. Every
// settlement computation takes this lock first so concurrent webhook and
// staff-entered payments cannot interleave.
func (s *Store) GetSaleForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := tx.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpdateSaleStatusTx updates the derived payment status of a sale inside tx
func (s *Store) UpdateSaleStatusTx(ctx context.Context, tx *sqlx.Tx, saleID int64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE sales SET status = $1, updated_at = NOW() WHERE id = $2",
		status, saleID)
	return err
}

// CreatePlanTx inserts an installment plan inside tx
func (s *Store) CreatePlanTx(ctx context.Context, tx *sqlx.Tx, plan *models.InstallmentPlan) error {
	query := `
		INSERT INTO installment_plans (sale_id, installments, monthly_rate, due_day)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return tx.GetContext(ctx, plan, query,
		plan.SaleID, plan.Installments, plan.MonthlyRate, plan.DueDay)
}

// CreateInstallmentsTx bulk-inserts the generated installment rows inside tx
func (s *Store) CreateInstallmentsTx(ctx context.Context, tx *sqlx.Tx, rows []models.Installment) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO installments (plan_id, seq, due_date, capital, interest, total, status)
		VALUES (:plan_id, :seq, :due_date, :capital, :interest, :total, :status)`

	_, err := tx.NamedExecContext(ctx, query, rows)
	return err
}

// GetPlanBySaleID retrieves the installment plan of a sale, if any
func (s *Store) GetPlanBySaleID(ctx context.Context, saleID int64) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	err := s.db.GetContext(ctx, &plan, "SELECT * FROM installment_plans WHERE sale_id = $1", saleID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetPlanByIDTx retrieves an installment plan by its id inside tx
func (s *Store) GetPlanByIDTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	err := tx.GetContext(ctx, &plan, "SELECT * FROM installment_plans WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("installment plan %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetInstallmentsByPlanID retrieves the installments of a plan ordered by sequence
func (s *Store) GetInstallmentsByPlanID(ctx context.Context, planID int64) ([]models.Installment, error) {
	var rows []models.Installment
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM installments WHERE plan_id = $1 ORDER BY seq", planID)
	return rows, err
}

// GetInstallmentForUpdateTx locks and retrieves an installment row inside tx
func (s *Store) GetInstallmentForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Installment, error) {
	var inst models.Installment
	err := tx.GetContext(ctx, &inst, "SELECT * FROM installments WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// SetInstallmentStatusTx updates an installment's status inside tx
func (s *Store) SetInstallmentStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE installments SET status = $1 WHERE id = $2", status, id)
	return err
}

// DeletePlanTx removes a sale's installments and plan inside tx (sale cancellation)
func (s *Store) DeletePlanTx(ctx context.Context, tx *sqlx.Tx, saleID int64) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM installments
		WHERE plan_id IN (SELECT id FROM installment_plans WHERE sale_id = $1)`, saleID)
	if err != nil {
		return fmt.Errorf("failed to delete installments: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM installment_plans WHERE sale_id = $1", saleID)
	if err != nil {
		return fmt.Errorf("failed to delete installment plan: %w", err)
	}
	return nil
}

// MarkOverdueInstallments flips every PENDING installment whose due date has
// passed to OVERDUE and returns how many rows changed. Safe to run any number
// of times; callers invoke it before installment-listing reads.
func (s *Store) MarkOverdueInstallments(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE installments SET status = $1
		WHERE status = $2 AND due_date < NOW()`,
		models.InstallmentStatusOverdue, models.InstallmentStatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListOverdueInstallments retrieves all OVERDUE installments ordered by due date
func (s *Store) ListOverdueInstallments(ctx context.Context) ([]models.Installment, error) {
	var rows []models.Installment
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM installments WHERE status = $1 ORDER BY due_date",
		models.InstallmentStatusOverdue)
	return rows, err
}

// ListInstallmentsDueWithin retrieves PENDING installments due in the next n days
func (s *Store) ListInstallmentsDueWithin(ctx context.Context, days int) ([]models.Installment, error) {
	var rows []models.Installment
	until := time.Now().AddDate(0, 0, days)
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM installments
		WHERE status = $1 AND due_date BETWEEN NOW() AND $2
		ORDER BY due_date`,
		models.InstallmentStatusPending, until)
	return rows, err
}
