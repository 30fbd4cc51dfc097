package api

import (
	"time"

	"travel-sales-service/internal/models"
	"travel-sales-service/internal/service"

	"github.com/gin-gonic/gin"
)

// Display metadata for the back-office UI. The core only knows the bare
// enum values; labels and badge colors live here, at the presentation edge.

type statusBadge struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var saleStatusBadges = map[string]statusBadge{
	models.SaleStatusPending:   {"Pendiente", "yellow"},
	models.SaleStatusPartial:   {"Pago Parcial", "blue"},
	models.SaleStatusCompleted: {"Completado", "green"},
	models.SaleStatusCancelled: {"Anulado", "red"},
}

var installmentStatusBadges = map[string]statusBadge{
	models.InstallmentStatusPending: {"Pendiente", "yellow"},
	models.InstallmentStatusPaid:    {"Pagado", "green"},
	models.InstallmentStatusOverdue: {"Vencido", "red"},
}

var methodLabels = map[string]string{
	models.MethodCash:         "Efectivo",
	models.MethodBankTransfer: "Transferencia",
	models.MethodCard:         "Tarjeta",
	models.MethodQR:           "QR",
	models.MethodTigoMoney:    "Tigo Money",
}

func badgeFor(table map[string]statusBadge, status string) statusBadge {
	if b, ok := table[status]; ok {
		return b
	}
	return statusBadge{Label: status, Color: "gray"}
}

// decorateSaleDetail wraps the sale read model with display metadata
func decorateSaleDetail(d *service.SaleDetail) gin.H {
	return gin.H{
		"sale":         d.Sale,
		"sale_badge":   badgeFor(saleStatusBadges, d.Sale.Status),
		"plan":         d.Plan,
		"installments": decorateInstallments(d.Installments),
		"payments":     decoratePayments(d.Payments),
		"paid":         d.Paid,
		"balance":      d.Balance,
		"plan_summary": d.Summary,
	}
}

// decorateInstallments wraps installment rows with display metadata and the
// days-until-due figure the collections screen sorts by
func decorateInstallments(rows []models.Installment) []gin.H {
	out := make([]gin.H, 0, len(rows))
	now := time.Now()
	for _, inst := range rows {
		out = append(out, gin.H{
			"installment":    inst,
			"badge":          badgeFor(installmentStatusBadges, inst.Status),
			"days_until_due": int(inst.DueDate.Sub(now).Hours() / 24),
		})
	}
	return out
}

func decoratePayments(rows []models.Payment) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, p := range rows {
		label, ok := methodLabels[p.Method]
		if !ok {
			label = p.Method
		}
		out = append(out, gin.H{
			"payment":      p,
			"method_label": label,
		})
	}
	return out
}
