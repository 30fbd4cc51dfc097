package service

import (
	"fmt"
	"math"
	"time"

	"travel-sales-service/internal/models"

	"github.com/shopspring/decimal"
)

// GenerateSchedule produces the amortization table for an installment sale:
// count rows splitting the principal into capital and compound interest at
// monthlyRatePct percent per month. With a zero rate the principal is split
// into equal capital portions. The final row's capital is forced to the exact
// remaining balance so the capital column always sums to the principal.
func GenerateSchedule(principal decimal.Decimal, count int, monthlyRatePct decimal.Decimal, start time.Time, dueDay int) ([]models.Installment, error) {
	if count <= 0 {
		return nil, fmt.Errorf("installment count %d: %w", count, ErrInvalidInput)
	}
	if !principal.IsPositive() {
		return nil, fmt.Errorf("principal %s: %w", principal, ErrInvalidInput)
	}
	if monthlyRatePct.IsNegative() {
		return nil, fmt.Errorf("monthly rate %s: %w", monthlyRatePct, ErrInvalidInput)
	}
	if dueDay < 1 || dueDay > 28 {
		return nil, fmt.Errorf("due day %d: %w", dueDay, ErrInvalidInput)
	}

	rate := monthlyRatePct.Div(decimal.NewFromInt(100))
	payment := fixedPayment(principal, count, rate)

	rows := make([]models.Installment, 0, count)
	balance := principal

	for i := 1; i <= count; i++ {
		interestRaw := balance.Mul(rate)

		var capital decimal.Decimal
		if i == count {
			// Last row absorbs the accumulated rounding drift.
			capital = balance
		} else {
			capital = payment.Sub(interestRaw).Round(2)
		}

		interest := interestRaw.Round(2)
		rows = append(rows, models.Installment{
			Seq:      i,
			DueDate:  dueDate(start, i, dueDay),
			Capital:  capital,
			Interest: interest,
			Total:    capital.Add(interest),
			Status:   models.InstallmentStatusPending,
		})

		balance = balance.Sub(capital)
	}

	return rows, nil
}

// fixedPayment computes the constant periodic payment of the annuity:
// principal * (r*(1+r)^n) / ((1+r)^n - 1). Kept unrounded; rounding happens
// per row.
func fixedPayment(principal decimal.Decimal, count int, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(count))).Round(2)
	}

	r, _ := rate.Float64()
	p, _ := principal.Float64()
	pow := math.Pow(1+r, float64(count))
	return decimal.NewFromFloat(p * (r * pow) / (pow - 1))
}

// dueDate returns the due date of installment i: start plus i calendar
// months, clamped to the plan's due day (1-28, so every month has it).
func dueDate(start time.Time, i, dueDay int) time.Time {
	months := int(start.Month()) + i
	year := start.Year() + (months-1)/12
	month := time.Month((months-1)%12 + 1)
	return time.Date(year, month, dueDay, 0, 0, 0, 0, start.Location())
}
