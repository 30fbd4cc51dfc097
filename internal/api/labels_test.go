package api

import (
	"testing"
	"time"

	"travel-sales-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeForKnownAndUnknownStatus(t *testing.T) {
	b := badgeFor(saleStatusBadges, models.SaleStatusPartial)
	assert.Equal(t, "Pago Parcial", b.Label)
	assert.Equal(t, "blue", b.Color)

	b = badgeFor(installmentStatusBadges, models.InstallmentStatusOverdue)
	assert.Equal(t, "Vencido", b.Label)
	assert.Equal(t, "red", b.Color)

	// unknown statuses fall back to the raw value in gray
	b = badgeFor(saleStatusBadges, "WEIRD")
	assert.Equal(t, "WEIRD", b.Label)
	assert.Equal(t, "gray", b.Color)
}

func TestDecorateInstallments(t *testing.T) {
	rows := []models.Installment{
		{
			Seq:     1,
			DueDate: time.Now().Add(72 * time.Hour),
			Total:   decimal.RequireFromString("367.21"),
			Status:  models.InstallmentStatusPending,
		},
	}

	out := decorateInstallments(rows)
	require.Len(t, out, 1)

	badge, ok := out[0]["badge"].(statusBadge)
	require.True(t, ok)
	assert.Equal(t, "Pendiente", badge.Label)

	days, ok := out[0]["days_until_due"].(int)
	require.True(t, ok)
	assert.Equal(t, 2, days)
}

func TestCallbackEnvelope(t *testing.T) {
	ok := callbackEnvelope(true, "Pago procesado correctamente")
	assert.Equal(t, 0, ok["error"])
	assert.Equal(t, 1, ok["status"])
	assert.Equal(t, true, ok["values"])

	bad := callbackEnvelope(false, "Pago no encontrado")
	assert.Equal(t, 1, bad["error"])
	assert.Equal(t, 0, bad["status"])
	assert.Equal(t, false, bad["values"])
}
